// Package tools – weather.go implements get_weather_info over the
// Open-Meteo geocoding and forecast APIs. No API key is needed; the two
// base URLs are injectable so tests can point them at local servers.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SusuLegend/anima-project/pkg/anima/assistant"
)

// Public Open-Meteo endpoints used when the config leaves them blank.
const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1"
	DefaultForecastURL  = "https://api.open-meteo.com/v1"
)

type geocodeResponse struct {
	Results []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
		Admin1    string  `json:"admin1"`
		Country   string  `json:"country"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Temperature   float64 `json:"temperature_2m"`
		ApparentTemp  float64 `json:"apparent_temperature"`
		Humidity      float64 `json:"relative_humidity_2m"`
		Precipitation float64 `json:"precipitation"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		WeatherCode   int     `json:"weather_code"`
	} `json:"current"`
	Daily struct {
		Time          []string  `json:"time"`
		TempMax       []float64 `json:"temperature_2m_max"`
		TempMin       []float64 `json:"temperature_2m_min"`
		Precipitation []float64 `json:"precipitation_sum"`
		WeatherCode   []int     `json:"weather_code"`
	} `json:"daily"`
}

// WeatherReport is the structured payload returned when formatted=false.
type WeatherReport struct {
	Location  string       `json:"location"`
	Condition string       `json:"condition"`
	TempC     float64      `json:"temperature_c"`
	FeelsC    float64      `json:"feels_like_c"`
	Humidity  float64      `json:"humidity_pct"`
	WindKmh   float64      `json:"wind_speed_kmh"`
	Forecast  []DayOutlook `json:"forecast,omitempty"`
}

// DayOutlook is one day of forecast inside a WeatherReport.
type DayOutlook struct {
	Date      string  `json:"date"`
	Condition string  `json:"condition"`
	HighC     float64 `json:"high_c"`
	LowC      float64 `json:"low_c"`
	PrecipMm  float64 `json:"precipitation_mm"`
}

// RegisterWeatherTool registers get_weather_info. geo and forecast address
// the geocoding and forecast services respectively.
func RegisterWeatherTool(reg *assistant.Registry, geo, forecast *Collaborator) error {
	return reg.Register(assistant.ToolDescriptor{
		Name:        "get_weather_info",
		Description: "Get current weather and an optional multi-day forecast for a city.",
		Params: []assistant.Param{
			{Name: "city", Type: "string", Description: "City name to look up", Required: true},
			{Name: "days", Type: "number", Description: "Forecast days, 1 to 7", Default: 1},
			{Name: "formatted", Type: "boolean", Description: "Return human-readable text instead of structured data", Default: false},
		},
	}, func(ctx context.Context, params map[string]any) (any, error) {
		city := strings.TrimSpace(stringParam(params, "city"))
		if city == "" {
			return nil, assistant.NewToolError(assistant.ErrMissingParameter, "missing required parameter %q", "city")
		}
		days := clampInt(intParam(params, "days", 1), 1, 7)
		formatted := boolParam(params, "formatted", false)

		report, err := fetchWeather(ctx, geo, forecast, city, days)
		if err != nil {
			return nil, err
		}
		if formatted {
			return formatReport(report), nil
		}
		return report, nil
	})
}

func fetchWeather(ctx context.Context, geo, forecast *Collaborator, city string, days int) (*WeatherReport, error) {
	body, err := geo.Get(ctx, "/search", map[string]string{
		"name":     city,
		"count":    "1",
		"language": "en",
		"format":   "json",
	})
	if err != nil {
		return nil, err
	}
	var gr geocodeResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, assistant.NewToolError(assistant.ErrTransport, "geocoding response: %s", err)
	}
	if len(gr.Results) == 0 {
		return nil, assistant.NewToolError(assistant.ErrTransport, "location %q not found", city)
	}
	loc := gr.Results[0]
	fullName := loc.Name
	if loc.Admin1 != "" {
		fullName += ", " + loc.Admin1
	}
	if loc.Country != "" {
		fullName += ", " + loc.Country
	}

	body, err = forecast.Get(ctx, "/forecast", map[string]string{
		"latitude":      strconv.FormatFloat(loc.Latitude, 'f', -1, 64),
		"longitude":     strconv.FormatFloat(loc.Longitude, 'f', -1, 64),
		"current":       "temperature_2m,relative_humidity_2m,apparent_temperature,precipitation,weather_code,wind_speed_10m",
		"daily":         "temperature_2m_max,temperature_2m_min,precipitation_sum,weather_code",
		"timezone":      "auto",
		"forecast_days": strconv.Itoa(days),
	})
	if err != nil {
		return nil, err
	}
	var fr forecastResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, assistant.NewToolError(assistant.ErrTransport, "forecast response: %s", err)
	}

	report := &WeatherReport{
		Location:  fullName,
		Condition: weatherCondition(fr.Current.WeatherCode),
		TempC:     fr.Current.Temperature,
		FeelsC:    fr.Current.ApparentTemp,
		Humidity:  fr.Current.Humidity,
		WindKmh:   fr.Current.WindSpeed,
	}
	for i, date := range fr.Daily.Time {
		day := DayOutlook{Date: date}
		if i < len(fr.Daily.WeatherCode) {
			day.Condition = weatherCondition(fr.Daily.WeatherCode[i])
		}
		if i < len(fr.Daily.TempMax) {
			day.HighC = fr.Daily.TempMax[i]
		}
		if i < len(fr.Daily.TempMin) {
			day.LowC = fr.Daily.TempMin[i]
		}
		if i < len(fr.Daily.Precipitation) {
			day.PrecipMm = fr.Daily.Precipitation[i]
		}
		report.Forecast = append(report.Forecast, day)
	}
	return report, nil
}

func formatReport(r *WeatherReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weather in %s:\n", r.Location)
	fmt.Fprintf(&b, "  Condition: %s\n", r.Condition)
	fmt.Fprintf(&b, "  Temperature: %.1f°C (feels like %.1f°C)\n", r.TempC, r.FeelsC)
	fmt.Fprintf(&b, "  Humidity: %.0f%%\n", r.Humidity)
	fmt.Fprintf(&b, "  Wind Speed: %.1f km/h\n", r.WindKmh)
	for _, d := range r.Forecast {
		day := d.Date
		if t, err := time.Parse("2006-01-02", d.Date); err == nil {
			day = t.Format("Monday, January 2")
		}
		fmt.Fprintf(&b, "%s:\n  %s\n  High: %.1f°C, Low: %.1f°C\n", day, d.Condition, d.HighC, d.LowC)
		if d.PrecipMm > 0 {
			fmt.Fprintf(&b, "  Precipitation: %.1f mm\n", d.PrecipMm)
		}
	}
	return b.String()
}

// weatherCondition maps a WMO weather code to a description.
func weatherCondition(code int) string {
	switch code {
	case 0:
		return "Clear sky"
	case 1:
		return "Mainly clear"
	case 2:
		return "Partly cloudy"
	case 3:
		return "Overcast"
	case 45:
		return "Foggy"
	case 48:
		return "Depositing rime fog"
	case 51:
		return "Light drizzle"
	case 53:
		return "Moderate drizzle"
	case 55:
		return "Dense drizzle"
	case 61:
		return "Slight rain"
	case 63:
		return "Moderate rain"
	case 65:
		return "Heavy rain"
	case 71:
		return "Slight snow"
	case 73:
		return "Moderate snow"
	case 75:
		return "Heavy snow"
	case 77:
		return "Snow grains"
	case 80:
		return "Slight rain showers"
	case 81:
		return "Moderate rain showers"
	case 82:
		return "Violent rain showers"
	case 85:
		return "Slight snow showers"
	case 86:
		return "Heavy snow showers"
	case 95:
		return "Thunderstorm"
	case 96:
		return "Thunderstorm with slight hail"
	case 99:
		return "Thunderstorm with heavy hail"
	default:
		return fmt.Sprintf("Unknown (%d)", code)
	}
}
