package swarmmgr

import (
	"path/filepath"

	"github.com/hbog/swarmbucket/pkg/metrics"
	"github.com/hbog/swarmbucket/pkg/swarmbucket"
	"github.com/hbog/swarmbucket/pkg/swarmhttp"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type SwarmManager struct {
	Bucket  *swarmbucket.Bucket
	Metrics *metrics.ClientMetrics
	Logger  logrus.FieldLogger
	Cfg     *viper.Viper
}

// NewManager reads the configuration and builds a ready to use Bucket.
// Recognized options:
//   "config-file": path to a config file (string)
//   "logger": a logrus.FieldLogger to use instead of a new logrus logger
//   "metrics": a *metrics.ClientMetrics to report to instead of a new one
func NewManager(userCfg map[string]interface{}) (*SwarmManager, error) {
	var err error
	mgr := &SwarmManager{}

	if cfgPathRaw, ok := userCfg["config-file"]; ok {
		if cfgPath, ok := cfgPathRaw.(string); ok {
			err = mgr.initConfig(&cfgPath)
		} else {
			return nil, errors.New("option 'config-file' must be of type string")
		}
	} else {
		err = mgr.initConfig(nil)
	}
	if err != nil {
		return nil, err
	}

	if loggerRaw, ok := userCfg["logger"]; ok {
		if logger, ok := loggerRaw.(logrus.FieldLogger); ok {
			mgr.Logger = logger
		} else {
			return nil, errors.New("option 'logger' must satisfy logrus.FieldLogger")
		}
	} else {
		logger := logrus.New()
		if lvl, err := logrus.ParseLevel(mgr.Cfg.GetString("log-level")); err == nil {
			logger.SetLevel(lvl)
		}
		mgr.Logger = logger
	}

	if metricsRaw, ok := userCfg["metrics"]; ok {
		if m, ok := metricsRaw.(*metrics.ClientMetrics); ok {
			mgr.Metrics = m
		} else {
			return nil, errors.New("option 'metrics' must be a *metrics.ClientMetrics")
		}
	} else {
		mgr.Metrics = metrics.New(nil)
	}

	if err = mgr.initBucket(); err != nil {
		return nil, err
	}
	return mgr, nil
}

func (self *SwarmManager) initConfig(cfgPath *string) error {
	// Private viper context so as not to conflict with the importer's usage.
	self.Cfg = viper.New()

	self.Cfg.SetDefault("log-level", "info")
	self.Cfg.SetDefault("dial-timeout", "10s")

	// Order of precedence: ENV, swarmbucket.yaml, defaults
	self.Cfg.BindEnv("domain", "SWARM_DOMAIN")
	self.Cfg.BindEnv("bucket", "SWARM_BUCKET")
	self.Cfg.BindEnv("username", "SWARM_USERNAME")
	self.Cfg.BindEnv("password", "SWARM_PASSWORD")

	if cfgPath != nil {
		self.Cfg.SetConfigFile(*cfgPath)
		if err := self.Cfg.ReadInConfig(); err != nil {
			return errors.Wrap(err, "Failed to load config")
		}
		return nil
	}

	// default search path for config is ./configs/swarmbucket.* and
	// ~/.swarmbucket/swarmbucket.* (* can be json, yaml, etc)
	self.Cfg.SetConfigName("swarmbucket")
	self.Cfg.AddConfigPath("./configs")
	if home, err := homedir.Dir(); err == nil {
		self.Cfg.AddConfigPath(filepath.Join(home, ".swarmbucket"))
	}

	if err := self.Cfg.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrap(err, "Failed to load config")
		}
	}
	return nil
}

func (self *SwarmManager) initBucket() error {
	domain := self.Cfg.GetString("domain")
	if domain == "" {
		return errors.New("No swarm domain in configuration")
	}
	bucketName := self.Cfg.GetString("bucket")

	exec := swarmhttp.NewExecutor(
		&swarmhttp.NetDialer{Timeout: self.Cfg.GetDuration("dial-timeout")},
		self.Logger.WithField("module", "swarmhttp"))
	exec.Observer = self.Metrics

	bucket, err := swarmbucket.New(domain, bucketName,
		swarmbucket.WithCredentials(self.Cfg.GetString("username"), self.Cfg.GetString("password")),
		swarmbucket.WithExecutor(exec),
		swarmbucket.WithLogger(self.Logger.WithField("module", "swarmbucket")))
	if err != nil {
		return errors.Wrap(err, "Failed to initialize bucket "+bucketName)
	}
	self.Bucket = bucket
	return nil
}
