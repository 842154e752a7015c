package metrics

import (
	"context"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry holds the collectors below. The tools are short-lived, so metrics
// are pushed to a Pushgateway instead of served.
var Registry = prometheus.NewRegistry()

var (
	FilesUploaded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rucio_tools",
		Name:      "upload_files_total",
		Help:      "Files handled by the upload client, by final state.",
	}, []string{"state"})
	BytesUploaded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rucio_tools",
		Name:      "upload_bytes_total",
		Help:      "Bytes transferred to storage elements.",
	})
	FilesValidated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rucio_tools",
		Name:      "validate_files_total",
		Help:      "Files checked by the validator, by result and failing check.",
	}, []string{"result", "check"})
)

var initOnce sync.Once

// Init registers collectors; safe to call more than once.
func Init() {
	initOnce.Do(func() {
		Registry.MustRegister(FilesUploaded, BytesUploaded, FilesValidated)
	})
}

// Push sends the registry to the Pushgateway at url under job.
func Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(Registry).PushContext(ctx)
}

// PushURLFromEnv returns PUSHGATEWAY_URL; empty disables pushing.
func PushURLFromEnv() string {
	return os.Getenv("PUSHGATEWAY_URL")
}
