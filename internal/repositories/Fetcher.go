package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Fetcher is the remote-data contract consumed by the directory and the
// collection driver. Implemented by OpenDataClient.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) (json.RawMessage, error)
}

// HTTPClient lets tests inject a transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const masterMunicipalitiesEndpoint = "/maestro/municipios"

// DailyForecastEndpoint returns the per-municipality daily forecast
// endpoint for a 5-digit INE code.
func DailyForecastEndpoint(code string) string {
	return fmt.Sprintf("/prediccion/especifica/municipio/diaria/%s", code)
}
