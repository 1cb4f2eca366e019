package console

import (
	"time"

	"github.com/louisbranch/groupbuy-console/internal/platform/logging"
	"github.com/louisbranch/groupbuy-console/internal/platform/timeouts"
	"github.com/louisbranch/groupbuy-console/internal/services/console/credstore"
)

// Config holds console server settings.
type Config struct {
	HTTPAddr   string        `env:"ADDR" envDefault:"127.0.0.1:8080"`
	APIURL     string        `env:"API_URL" envDefault:"http://127.0.0.1:8000"`
	APITimeout time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	Store      credstore.Config
	Log        logging.Config
}

func (c Config) apiTimeout() time.Duration {
	if c.APITimeout <= 0 {
		return timeouts.APIRequest
	}
	return c.APITimeout
}
