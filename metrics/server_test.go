package metrics

import (
	"context"
	"io"
	"net/http"
	"time"

	sarq "github.com/nicosta1132/sarq-go"
)

func (suite *MetricsTestSuite) get(url string) (int, string) {
	resp, err := http.Get(url)
	suite.Require().NoError(err)
	body, err := io.ReadAll(resp.Body)
	suite.Require().NoError(err)
	suite.Require().NoError(resp.Body.Close())
	return resp.StatusCode, string(body)
}

func (suite *MetricsTestSuite) TestServerServesMetricsAndHealth() {
	srv := NewServer("127.0.0.1:0", "/metrics", "/health")
	srv.MustRegister(NewProtocolCollector(&fakeRun{
		snd: sarq.SenderStats{Submitted: 7},
	}))
	suite.Require().NoError(srv.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		suite.NoError(srv.Shutdown(ctx))
	}()

	status, body := suite.get("http://" + srv.Addr() + "/metrics")
	suite.Equal(http.StatusOK, status)
	suite.Contains(body, "sarq_sender_messages_submitted_total 7")

	status, body = suite.get("http://" + srv.Addr() + "/health")
	suite.Equal(http.StatusOK, status)
	suite.Contains(body, `"status":"ok"`)
}

func (suite *MetricsTestSuite) TestServerReportsBindError() {
	srv := NewServer("127.0.0.1:99999", "/metrics", "/health")
	suite.Error(srv.Start())
}

func (suite *MetricsTestSuite) TestServerShutdownBeforeStartIsNoOp() {
	srv := NewServer("127.0.0.1:0", "/metrics", "/health")
	suite.NoError(srv.Shutdown(context.Background()))
}
