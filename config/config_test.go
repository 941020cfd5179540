package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func (suite *ConfigTestSuite) write(content string) string {
	path := filepath.Join(suite.T().TempDir(), "harness.yaml")
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0644))
	return path
}

func (suite *ConfigTestSuite) TestDefaultsValidate() {
	suite.NoError(DefaultConfig().Validate())
}

func (suite *ConfigTestSuite) TestLoadKeepsDefaultsForOmittedFields() {
	path := suite.write(`
channel:
  loss_prob: 0.25
harness:
  messages: 7
`)
	cfg, err := Load(path)
	suite.Require().NoError(err)

	suite.Equal(0.25, cfg.Channel.LossProb)
	suite.Equal(7, cfg.Harness.Messages)
	// untouched sections keep their defaults
	suite.Equal(int32(6), cfg.Protocol.WindowSize)
	suite.Equal(50.0, cfg.Channel.MeanInterarrival)
	suite.Equal(":9100", cfg.Metrics.Listen)
}

func (suite *ConfigTestSuite) TestLoadMissingFile() {
	_, err := Load(filepath.Join(suite.T().TempDir(), "absent.yaml"))
	suite.Error(err)
}

func (suite *ConfigTestSuite) TestLoadRejectsMalformedYAML() {
	_, err := Load(suite.write("harness: [not a mapping"))
	suite.Error(err)
}

func (suite *ConfigTestSuite) TestLoadRejectsInvalidValues() {
	for name, content := range map[string]string{
		"tiny seq space":    "protocol:\n  seq_space: 11\n",
		"loss too big":      "channel:\n  loss_prob: 1.5\n",
		"no messages":       "harness:\n  messages: 0\n",
		"trace too high":    "harness:\n  trace: 4\n",
		"negative realtime": "harness:\n  realtime_factor: -0.5\n",
		"bad metric path":   "metrics:\n  enabled: true\n  path: metrics\n",
		"bad feed listen":   "feed:\n  enabled: true\n  listen: nowhere\n",
	} {
		_, err := Load(suite.write(content))
		suite.Error(err, name)
	}
}

func (suite *ConfigTestSuite) TestValidateRejectsPortClash() {
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Feed.Enabled = true
	cfg.Feed.Listen = cfg.Metrics.Listen
	suite.Error(cfg.Validate())

	cfg.Feed.Listen = ":8080"
	suite.NoError(cfg.Validate())
}

func (suite *ConfigTestSuite) TestEmulatorConfigMapsSections() {
	cfg := DefaultConfig()
	cfg.Protocol.WindowSize = 4
	cfg.Protocol.SeqSpace = 9
	cfg.Channel.LossProb = 0.2
	cfg.Harness.Seed = 77
	cfg.Harness.RealTime = 0.25

	em := cfg.EmulatorConfig()
	suite.Equal(int32(4), em.Protocol.WindowSize)
	suite.Equal(int32(9), em.Protocol.SeqSpace)
	suite.Equal(0.2, em.LossProb)
	suite.Equal(uint64(77), em.Seed)
	suite.Equal(0.25, em.RealTime)
	suite.Equal(cfg.Harness.Messages, em.MaxMessages)
	suite.Equal(cfg.Channel.MeanInterarrival, em.MeanInterarrival)
}

func (suite *ConfigTestSuite) TestExampleConfigMatchesDefaults() {
	path := filepath.Join(suite.T().TempDir(), "example.yaml")
	suite.Require().NoError(WriteExampleConfig(path))

	cfg, err := Load(path)
	suite.Require().NoError(err)
	suite.Equal(DefaultConfig(), cfg)
}

func TestConfig(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
