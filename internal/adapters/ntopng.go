package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sentinel-labs/netsec/internal/models"
)

const defaultNtopngAPIURL = "http://127.0.0.1:3000"

// Ntopng wraps ntopng's REST API. Unlike the other adapters it is not
// process-driven: ntopng is expected to already be running as its own
// daemon and is reached purely over HTTP.
type Ntopng struct {
	BaseAdapter
	status   models.ToolStatus
	apiURL   string
	user     string
	password string
	client   *http.Client
}

func NewNtopng() *Ntopng {
	return &Ntopng{
		status: models.StatusUnknown,
		apiURL: defaultNtopngAPIURL,
		user:   os.Getenv("NETSEC__NTOPNG__API_USER"),
		password: os.Getenv("NETSEC__NTOPNG__API_PASS"),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *Ntopng) ToolInfo() models.ToolInfo {
	return models.ToolInfo{
		Name:           "ntopng",
		DisplayName:    "ntopng",
		Category:       models.CategoryTrafficAnalyzer,
		Description:    "Network traffic monitoring and analysis",
		Status:         a.status,
		SupportedTasks: []string{"flows", "hosts", "interfaces", "alerts", "stats"},
	}
}

func (a *Ntopng) Detect(ctx context.Context) (bool, error) {
	if _, err := a.apiGet(ctx, "/lua/rest/v2/get/ntopng/interfaces.lua", nil); err == nil {
		a.status = models.StatusAvailable
		return true, nil
	}
	a.status = models.StatusUnavailable
	return false, nil
}

func (a *Ntopng) HealthCheck(ctx context.Context) (models.ToolStatus, error) {
	if _, err := a.apiGet(ctx, "/lua/rest/v2/get/ntopng/interfaces.lua", nil); err == nil {
		a.status = models.StatusRunning
	} else if a.status != models.StatusUnavailable {
		a.status = models.StatusError
	}
	return a.status, nil
}

func (a *Ntopng) Execute(ctx context.Context, task string, params map[string]interface{}) (map[string]interface{}, error) {
	ifid := "0"
	if v, ok := params["interface_id"].(string); ok && v != "" {
		ifid = v
	}
	switch task {
	case "flows":
		return a.apiGetResult(ctx, "/lua/rest/v2/get/flow/active.lua", url.Values{"ifid": {ifid}}), nil
	case "hosts":
		return a.apiGetResult(ctx, "/lua/rest/v2/get/host/active.lua", url.Values{"ifid": {ifid}}), nil
	case "interfaces":
		return a.apiGetResult(ctx, "/lua/rest/v2/get/ntopng/interfaces.lua", nil), nil
	case "alerts":
		return a.apiGetResult(ctx, "/lua/rest/v2/get/flow/alert/list.lua", url.Values{"ifid": {ifid}}), nil
	case "stats":
		return a.apiGetResult(ctx, "/lua/rest/v2/get/interface/data.lua", url.Values{"ifid": {ifid}}), nil
	default:
		return nil, fmt.Errorf("unknown task: %s", task)
	}
}

func (a *Ntopng) apiGetResult(ctx context.Context, path string, params url.Values) map[string]interface{} {
	body, err := a.apiGet(ctx, path, params)
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	return a.decodeJSON(body)
}

func (a *Ntopng) apiGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	full := a.apiURL + path
	if len(params) > 0 {
		full += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, err
	}
	if a.user != "" && a.password != "" {
		req.SetBasicAuth(a.user, a.password)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ntopng API returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (a *Ntopng) decodeJSON(raw []byte) map[string]interface{} {
	var parsed map[string]interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return map[string]interface{}{"raw": string(raw)}
	}
	return parsed
}

func (a *Ntopng) ParseOutput(raw []byte, format string) (map[string]interface{}, error) {
	return a.decodeJSON(raw), nil
}
