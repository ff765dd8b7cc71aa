package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WeatherTool answers weather questions via the Open-Meteo API, which
// needs no API key. Place names are resolved with Open-Meteo's geocoder.
type WeatherTool struct {
	httpClient *http.Client
}

func NewWeatherTool() *WeatherTool {
	return &WeatherTool{httpClient: &http.Client{Timeout: 10 * time.Second}}
}

func (t *WeatherTool) Name() string { return "weather" }
func (t *WeatherTool) Description() string {
	return "Get current weather and a short forecast for a place."
}
func (t *WeatherTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"place": {"type": "string", "description": "City or place name, e.g. 'Lisbon'"}
		},
		"required": ["place"]
	}`)
}

func (t *WeatherTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	place, _ := params["place"].(string)
	if strings.TrimSpace(place) == "" {
		return "Error: place is required", nil
	}

	lat, lon, resolved, err := t.geocode(ctx, place)
	if err != nil {
		return "", err
	}
	if resolved == "" {
		return fmt.Sprintf("I couldn't find a place called %q.", place), nil
	}

	forecastURL := fmt.Sprintf(
		"https://api.open-meteo.com/v1/forecast?latitude=%.4f&longitude=%.4f"+
			"&current=temperature_2m,apparent_temperature,weather_code,wind_speed_10m"+
			"&daily=temperature_2m_max,temperature_2m_min,precipitation_probability_max"+
			"&forecast_days=2&timezone=auto",
		lat, lon)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, forecastURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	var data struct {
		Current struct {
			Temperature float64 `json:"temperature_2m"`
			Apparent    float64 `json:"apparent_temperature"`
			WeatherCode int     `json:"weather_code"`
			WindSpeed   float64 `json:"wind_speed_10m"`
		} `json:"current"`
		Daily struct {
			TempMax       []float64 `json:"temperature_2m_max"`
			TempMin       []float64 `json:"temperature_2m_min"`
			PrecipProbMax []int     `json:"precipitation_probability_max"`
		} `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("parse weather response: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Weather in %s: %s, %.1f°C (feels like %.1f°C), wind %.0f km/h.\n",
		resolved, weatherCodeText(data.Current.WeatherCode),
		data.Current.Temperature, data.Current.Apparent, data.Current.WindSpeed)
	if len(data.Daily.TempMax) > 1 {
		fmt.Fprintf(&sb, "Tomorrow: %.0f–%.0f°C", data.Daily.TempMin[1], data.Daily.TempMax[1])
		if len(data.Daily.PrecipProbMax) > 1 {
			fmt.Fprintf(&sb, ", %d%% chance of rain", data.Daily.PrecipProbMax[1])
		}
		sb.WriteString(".")
	}

	return sb.String(), nil
}

func (t *WeatherTool) geocode(ctx context.Context, place string) (lat, lon float64, resolved string, err error) {
	u := "https://geocoding-api.open-meteo.com/v1/search?count=1&name=" + url.QueryEscape(place)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, "", err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, 0, "", fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	var data struct {
		Results []struct {
			Name      string  `json:"name"`
			Country   string  `json:"country"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, 0, "", fmt.Errorf("parse geocode response: %w", err)
	}
	if len(data.Results) == 0 {
		return 0, 0, "", nil
	}

	r := data.Results[0]
	name := r.Name
	if r.Country != "" {
		name += ", " + r.Country
	}
	return r.Latitude, r.Longitude, name, nil
}

// weatherCodeText maps WMO weather codes to short descriptions.
func weatherCodeText(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code <= 3:
		return "partly cloudy"
	case code <= 48:
		return "foggy"
	case code <= 57:
		return "drizzle"
	case code <= 67:
		return "rain"
	case code <= 77:
		return "snow"
	case code <= 82:
		return "rain showers"
	case code <= 86:
		return "snow showers"
	default:
		return "thunderstorm"
	}
}
