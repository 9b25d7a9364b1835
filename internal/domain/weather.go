package domain

import (
	"context"
	"log/slog"
)

// WeatherProvider supplies a daily weather series keyed by ISO date
// (YYYY-MM-DD). Days the provider has no data for are absent.
type WeatherProvider interface {
	FetchDaily(ctx context.Context, year int) (map[string]WeatherDay, error)
}

// FetchWeather asks provider for the year's series. Weather is best-effort
// enrichment: a nil provider or any provider error yields an empty, non-nil
// mapping and a warning.
func FetchWeather(ctx context.Context, provider WeatherProvider, year int, logger *slog.Logger) map[string]WeatherDay {
	if provider == nil {
		logger.Info("weather enrichment disabled")
		return map[string]WeatherDay{}
	}

	days, err := provider.FetchDaily(ctx, year)
	if err != nil {
		logger.Warn("weather fetch failed, continuing without weather",
			"year", year,
			"error", err,
		)
		return map[string]WeatherDay{}
	}
	if days == nil {
		return map[string]WeatherDay{}
	}
	logger.Info("weather fetched", "year", year, "days", len(days))
	return days
}
