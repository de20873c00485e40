package world

// Weather - погода в комнате
type Weather string

const (
	WeatherClear Weather = "clear"
	WeatherRain  Weather = "rain"
	WeatherStorm Weather = "storm"
	WeatherSnow  Weather = "snow"
	WeatherFog   Weather = "fog"
)

// AllWeather - фиксированный набор погодных состояний
func AllWeather() []Weather {
	return []Weather{WeatherClear, WeatherRain, WeatherStorm, WeatherSnow, WeatherFog}
}

// Valid проверяет принадлежность набору
func (w Weather) Valid() bool {
	for _, known := range AllWeather() {
		if w == known {
			return true
		}
	}
	return false
}
