package common

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the package-wide structured logger. It writes to stderr at
// Info level; tests leave it as is, so expected warnings (pool
// exhaustion, simulated I/O failure) appear in test output.
var Log = logrus.New()

func init() {
	Log.SetOutput(os.Stderr)
	Log.SetLevel(logrus.InfoLevel)
}
