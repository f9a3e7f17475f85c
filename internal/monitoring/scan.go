package monitoring

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sentinel-labs/netsec/internal/eventbus"
	"github.com/sentinel-labs/netsec/internal/metrics"
	"github.com/sentinel-labs/netsec/internal/models"
	"github.com/sentinel-labs/netsec/internal/utils"
)

// ScanStore is the persistence surface the scan orchestrator needs.
type ScanStore interface {
	SaveScan(ctx context.Context, scan models.Scan) error
	GetScan(ctx context.Context, id string) (models.Scan, bool, error)
	FindDeviceByIPOrMAC(ctx context.Context, ip, mac string) (models.Device, bool, error)
	SaveDevice(ctx context.Context, device models.Device) error
}

// Adapter is the subset of adapters.Adapter the scan orchestrator uses.
// Defined locally so this package doesn't import internal/adapters.
type Adapter interface {
	ToolInfo() models.ToolInfo
	Execute(ctx context.Context, task string, params map[string]interface{}) (map[string]interface{}, error)
}

// AdapterLookup resolves a registered adapter by tool name.
type AdapterLookup interface {
	Get(name string) (Adapter, bool)
}

// scanTypeTasks maps (scan_type, tool) to the adapter task it runs,
// mirroring the original orchestrator's dispatch table.
var scanTypeTasks = map[[2]string]string{
	{"network", "nmap"}:          "quick_scan",
	{"vulnerability", "nmap"}:    "vuln_scan",
	{"vulnerability", "openvas"}: "full_scan",
	{"traffic", "tshark"}:        "capture",
	{"malware", "clamav"}:        "scan",
}

func mapScanTypeToTask(scanType, tool string) string {
	if task, ok := scanTypeTasks[[2]string{scanType, tool}]; ok {
		return task
	}
	return "quick_scan"
}

// ScanOrchestrator runs scans against a registered adapter, persisting
// progress and discovered devices and publishing lifecycle events.
type ScanOrchestrator struct {
	store    ScanStore
	adapters AdapterLookup
	bus      *eventbus.Bus
}

// NewScanOrchestrator builds a ScanOrchestrator over store/adapters/bus.
func NewScanOrchestrator(store ScanStore, adapters AdapterLookup, bus *eventbus.Bus) *ScanOrchestrator {
	return &ScanOrchestrator{store: store, adapters: adapters, bus: bus}
}

// RunScan creates a scan record, executes it against tool, and returns
// the completed (or failed) scan. Devices discovered in the results are
// upserted into the device store.
func (o *ScanOrchestrator) RunScan(ctx context.Context, scanType, tool, target string, parameters map[string]interface{}) (models.Scan, error) {
	adapter, ok := o.adapters.Get(tool)
	if !ok {
		return models.Scan{}, fmt.Errorf("unknown tool: %s", tool)
	}
	if adapter.ToolInfo().Status != models.StatusAvailable {
		return models.Scan{}, fmt.Errorf("tool not available: %s", tool)
	}

	scan := models.Scan{
		ID:         utils.GenerateID("scan"),
		ScanType:   scanType,
		Tool:       tool,
		Target:     target,
		Status:     models.ScanPending,
		Parameters: parameters,
		CreatedAt:  nowFn(),
	}
	if err := o.store.SaveScan(ctx, scan); err != nil {
		return scan, err
	}
	o.publish(models.EventScanStarted, map[string]interface{}{"scan_id": scan.ID, "tool": tool, "target": target})

	startedAt := nowFn()
	scan.Status = models.ScanRunning
	scan.StartedAt = &startedAt
	scan.Progress = 0
	_ = o.store.SaveScan(ctx, scan)
	o.publish(models.EventScanProgress, map[string]interface{}{"scan_id": scan.ID, "progress": 0, "status": "running"})

	task := mapScanTypeToTask(scanType, tool)
	params := map[string]interface{}{"target": target}
	for k, v := range parameters {
		params[k] = v
	}

	result, err := adapter.Execute(ctx, task, params)
	completedAt := nowFn()
	scan.CompletedAt = &completedAt
	scan.Progress = 100
	duration := completedAt.Sub(startedAt).Seconds()

	if err != nil {
		scan.Status = models.ScanFailed
		scan.ErrorMessage = err.Error()
	} else if errMsg, hasErr := result["error"]; hasErr {
		scan.Status = models.ScanFailed
		scan.ErrorMessage = fmt.Sprint(errMsg)
	} else {
		scan.Status = models.ScanCompleted
		scan.Results = result
		scan.ResultSummary = summarizeResults(result)

		hosts, _ := result["hosts"].([]map[string]interface{})
		for _, host := range hosts {
			if _, err := o.upsertDeviceFromScan(ctx, host); err != nil {
				log.Warn().Err(err).Msg("failed to upsert device from scan result")
			}
		}
		scan.DevicesFound = len(hosts)
	}

	if saveErr := o.store.SaveScan(ctx, scan); saveErr != nil {
		return scan, saveErr
	}
	metrics.RecordScan(tool, string(scan.Status), duration)

	eventType := models.EventScanFailed
	if scan.Status == models.ScanCompleted {
		eventType = models.EventScanCompleted
	}
	o.publish(eventType, map[string]interface{}{
		"scan_id":       scan.ID,
		"status":        string(scan.Status),
		"devices_found": scan.DevicesFound,
	})

	return scan, nil
}

// CancelScan transitions a pending or running scan to cancelled. Scans in
// any other state are left untouched and return an error.
func (o *ScanOrchestrator) CancelScan(ctx context.Context, scanID string) (models.Scan, error) {
	scan, found, err := o.store.GetScan(ctx, scanID)
	if err != nil {
		return models.Scan{}, err
	}
	if !found {
		return models.Scan{}, fmt.Errorf("scan not found: %s", scanID)
	}
	if scan.Status != models.ScanPending && scan.Status != models.ScanRunning {
		return models.Scan{}, fmt.Errorf("scan %s is not cancellable from status %s", scanID, scan.Status)
	}

	scan.Status = models.ScanCancelled
	if err := o.store.SaveScan(ctx, scan); err != nil {
		return models.Scan{}, err
	}
	return scan, nil
}

func (o *ScanOrchestrator) publish(eventType models.EventType, data map[string]interface{}) {
	o.bus.PublishNoWait(models.Event{Type: eventType, Source: "scan_orchestrator", Data: data})
}

func summarizeResults(result map[string]interface{}) string {
	if stats, ok := result["stats"].(map[string]interface{}); ok && len(stats) > 0 {
		return fmt.Sprintf("%v hosts up, %v down", stats["hosts_up"], stats["hosts_down"])
	}
	hosts, _ := result["hosts"].([]map[string]interface{})
	return fmt.Sprintf("%d hosts found", len(hosts))
}

// upsertDeviceFromScan creates or merges a device from one scanned
// host's result map, matching by IP or MAC as device_service.py does.
func (o *ScanOrchestrator) upsertDeviceFromScan(ctx context.Context, host map[string]interface{}) (models.Device, error) {
	addresses, _ := host["addresses"].(map[string]interface{})
	ip, _ := addresses["ipv4"].(string)
	mac, _ := addresses["mac"].(string)
	vendor, _ := addresses["vendor"].(string)

	var hostname string
	if hostnames, ok := host["hostnames"].([]map[string]interface{}); ok && len(hostnames) > 0 {
		hostname, _ = hostnames[0]["name"].(string)
	}

	now := nowFn()
	device, found, err := o.store.FindDeviceByIPOrMAC(ctx, ip, mac)
	if err != nil {
		return models.Device{}, err
	}

	status, _ := host["status"].(string)
	if status == "" {
		status = string(models.DeviceOnline)
	}

	if !found {
		device = models.Device{
			ID:         utils.GenerateID("device"),
			IPAddress:  ip,
			MACAddress: mac,
			Hostname:   hostname,
			Vendor:     vendor,
			Status:     models.DeviceStatus(status),
			FirstSeen:  now,
			LastSeen:   now,
		}
	} else {
		if mac != "" && device.MACAddress == "" {
			device.MACAddress = mac
		}
		if hostname != "" && device.Hostname == "" {
			device.Hostname = hostname
		}
		if vendor != "" && device.Vendor == "" {
			device.Vendor = vendor
		}
		device.LastSeen = now
		device.Status = models.DeviceStatus(status)
	}

	if osInfo, ok := host["os"].(map[string]interface{}); ok {
		if name, ok := osInfo["name"].(string); ok && name != "" {
			device.OSFamily = name
		}
	}

	if ports, ok := host["ports"].([]map[string]interface{}); ok {
		device.Ports = mergePorts(device.Ports, ports)
	}

	if err := o.store.SaveDevice(ctx, device); err != nil {
		return device, err
	}

	eventType := models.EventDeviceUpdated
	if !found {
		eventType = models.EventDeviceDiscovered
	}
	o.publish(eventType, map[string]interface{}{"device_id": device.ID, "ip": device.IPAddress, "hostname": device.Hostname})

	return device, nil
}

func mergePorts(existing []models.Port, scanned []map[string]interface{}) []models.Port {
	byKey := make(map[[2]interface{}]int, len(existing))
	for i, p := range existing {
		byKey[[2]interface{}{p.PortNumber, p.Protocol}] = i
	}

	out := append([]models.Port(nil), existing...)
	for _, pd := range scanned {
		portNum, _ := pd["port"].(int)
		protocol, _ := pd["protocol"].(string)
		if protocol == "" {
			protocol = "tcp"
		}
		state, _ := pd["state"].(string)
		if state == "" {
			state = "open"
		}
		service, _ := pd["service"].(string)
		version, _ := pd["version"].(string)
		product, _ := pd["product"].(string)

		key := [2]interface{}{portNum, models.Protocol(protocol)}
		if idx, ok := byKey[key]; ok {
			out[idx].State = models.PortState(state)
			if service != "" {
				out[idx].ServiceName = service
			}
			if version != "" {
				out[idx].ServiceVersion = version
			}
			continue
		}

		out = append(out, models.Port{
			PortNumber:     portNum,
			Protocol:       models.Protocol(protocol),
			State:          models.PortState(state),
			ServiceName:    service,
			ServiceVersion: version,
			Banner:         product,
		})
	}
	return out
}
