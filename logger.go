package registration

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

func defaultLogger() Logger {
	return NewLoggerProvider(glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Info),
		glog.WithName("registration"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)).GetLogger("registration")
}

// NewLoggerProvider exposes a glog root logger as a LoggerProvider.
func NewLoggerProvider(root *glog.BaseLogger) LoggerProvider {
	return glogProvider{root: root}
}

type glogProvider struct {
	root *glog.BaseLogger
}

func (p glogProvider) GetLogger(name string) Logger {
	if p.root == nil {
		return nil
	}
	return p.root.GetLogger(name)
}

// ResolveLogger returns the provider and the scoped logger for name.
// When the provider cannot produce a logger the fallback is used, and a
// provider that always returns it is handed back.
func ResolveLogger(name string, provider LoggerProvider, fallback Logger) (LoggerProvider, Logger) {
	if provider != nil {
		if lgr := provider.GetLogger(name); lgr != nil {
			return provider, lgr
		}
	}

	if fallback == nil {
		fallback = defaultLogger()
	}

	return fixedProvider{logger: fallback}, fallback
}

type fixedProvider struct {
	logger Logger
}

func (p fixedProvider) GetLogger(string) Logger {
	return p.logger
}
