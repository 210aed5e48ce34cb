// internal/relay/renderer_iface.go
package relay

// StatusRenderer — контракт рендера статусного текста из телеметрии.
type StatusRenderer interface {
	// Render возвращает готовый текст для поля status записи реестра.
	Render(t Telemetry) string
}
