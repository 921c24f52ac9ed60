package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var loadOnce sync.Once

// Config returns the value of key, loading .env into the process environment on first use.
// Variables already present in the environment win over the file.
func Config(key string) string {
	loadOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
			logrus.WithError(err).Warn("error loading .env file")
		}
	})
	return os.Getenv(key)
}

// Default returns Config(key) or def when the key is unset.
func Default(key, def string) string {
	if v := Config(key); v != "" {
		return v
	}
	return def
}

// Int parses key as an integer, falling back to def when unset or malformed.
func Int(key string, def int) int {
	v := Config(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid integer %q, using %d", v, def)
		return def
	}
	return n
}

// Duration reads key as an integer count of unit.
func Duration(key string, def int, unit time.Duration) time.Duration {
	return time.Duration(Int(key, def)) * unit
}
