package main

import (
	"github.com/Magalhaes24/scout/internal/pipeline"
	"github.com/Magalhaes24/scout/internal/source"
	"github.com/Magalhaes24/scout/internal/source/browser"
)

func sourceOptions() source.Options {
	return source.Options{
		BaseURL:           cfg.Source.BaseURL,
		UserAgent:         cfg.Source.UserAgent,
		HTTPTimeout:       cfg.Source.HTTPTimeout(),
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
		MaxAttempts:       cfg.Source.MaxAttempts,
		BreakerThreshold:  cfg.Source.BreakerThreshold,
		BreakerReset:      cfg.Source.BreakerReset(),
		BrowserEnabled:    cfg.Browser.Enabled,
		ResultsTimeout:    cfg.Browser.ResultsTimeout(),
		ConsentWait:       cfg.Browser.ConsentWait(),
		NewDriver: browser.Launcher(browser.Options{
			Headless:        cfg.Browser.Headless,
			UserAgent:       cfg.Source.UserAgent,
			PageLoadTimeout: cfg.Browser.PageLoadTimeout(),
			ExecPath:        cfg.Browser.ExecPath,
		}),
	}
}

// resolverFactory builds one source client per worker.
func resolverFactory() pipeline.ResolverFactory {
	opts := sourceOptions()
	return func() pipeline.Resolver {
		return source.New(opts)
	}
}
