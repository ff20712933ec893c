// Package config loads typed configuration from environment variables.
//
// It wraps github.com/joho/godotenv for optional .env files and
// github.com/caarlos0/env/v11 for tag-driven parsing. Each component owns its
// config struct (pg.Config, stripe.Config, renewal.Config, ...) and the
// composition root loads them one by one:
//
//	var pgCfg pg.Config
//	if err := config.Load(&pgCfg); err != nil {
//		return err
//	}
//
// Types that implement Validator get a Validate call after parsing; its error
// is wrapped with ErrInvalidConfig.
package config
