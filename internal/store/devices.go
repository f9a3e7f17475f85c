package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sentinel-labs/netsec/internal/models"
)

// FindDeviceByIPOrMAC returns the device matching ip or mac, if any.
// mac may be empty, in which case only ip is matched.
func (s *Store) FindDeviceByIPOrMAC(ctx context.Context, ip, mac string) (models.Device, bool, error) {
	query := `SELECT id, ip_address, mac_address, hostname, vendor, os_family, os_version, device_type,
		status, first_seen, last_seen, notes FROM devices WHERE ip_address = ?`
	args := []interface{}{ip}
	if mac != "" {
		query += ` OR mac_address = ?`
		args = append(args, mac)
	}
	query += ` LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	device, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return models.Device{}, false, nil
	}
	if err != nil {
		return models.Device{}, false, fmt.Errorf("find device: %w", err)
	}

	device.Ports, err = s.listPorts(ctx, device.ID)
	if err != nil {
		return models.Device{}, false, err
	}
	return device, true, nil
}

// GetDevice returns a device by ID, including its ports.
func (s *Store) GetDevice(ctx context.Context, id string) (models.Device, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, ip_address, mac_address, hostname, vendor, os_family,
		os_version, device_type, status, first_seen, last_seen, notes FROM devices WHERE id = ?`, id)
	device, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return models.Device{}, false, nil
	}
	if err != nil {
		return models.Device{}, false, fmt.Errorf("get device: %w", err)
	}
	device.Ports, err = s.listPorts(ctx, device.ID)
	if err != nil {
		return models.Device{}, false, err
	}
	return device, true, nil
}

// ListDevices returns devices ordered by most-recently-seen, optionally
// filtered by status.
func (s *Store) ListDevices(ctx context.Context, status models.DeviceStatus, offset, limit int) ([]models.Device, error) {
	query := `SELECT id, ip_address, mac_address, hostname, vendor, os_family, os_version, device_type,
		status, first_seen, last_seen, notes FROM devices`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY last_seen DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []models.Device
	for rows.Next() {
		d, err := scanDeviceRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}
		out = append(out, d)
	}
	for i := range out {
		ports, err := s.listPorts(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Ports = ports
	}
	return out, nil
}

// SaveDevice upserts device by ID and replaces its known ports.
func (s *Store) SaveDevice(ctx context.Context, device models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO devices (id, ip_address, mac_address, hostname, vendor, os_family, os_version, device_type,
	status, first_seen, last_seen, notes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	ip_address=excluded.ip_address, mac_address=excluded.mac_address, hostname=excluded.hostname,
	vendor=excluded.vendor, os_family=excluded.os_family, os_version=excluded.os_version,
	device_type=excluded.device_type, status=excluded.status, last_seen=excluded.last_seen,
	notes=excluded.notes`,
		device.ID, device.IPAddress, device.MACAddress, device.Hostname, device.Vendor,
		device.OSFamily, device.OSVersion, device.DeviceType, string(device.Status),
		device.FirstSeen.Unix(), device.LastSeen.Unix(), device.Notes)
	if err != nil {
		return fmt.Errorf("save device: %w", err)
	}

	for _, p := range device.Ports {
		if err := s.upsertPortLocked(ctx, device.ID, p); err != nil {
			return err
		}
	}
	return nil
}

// UpdateDeviceStatus sets a device's status directly, used by the
// offline sweep.
func (s *Store) UpdateDeviceStatus(ctx context.Context, id string, status models.DeviceStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE devices SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update device status: %w", err)
	}
	return nil
}

// ListStaleOnlineDevices returns devices marked online whose last_seen
// predates threshold — candidates for the offline sweep.
func (s *Store) ListStaleOnlineDevices(ctx context.Context, threshold time.Time) ([]models.Device, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, ip_address, mac_address, hostname, vendor, os_family,
		os_version, device_type, status, first_seen, last_seen, notes
		FROM devices WHERE status = ? AND last_seen < ?`, string(models.DeviceOnline), threshold.Unix())
	if err != nil {
		return nil, fmt.Errorf("list stale devices: %w", err)
	}
	defer rows.Close()

	var out []models.Device
	for rows.Next() {
		d, err := scanDeviceRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) listPorts(ctx context.Context, deviceID string) ([]models.Port, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, device_id, port_number, protocol, state, service_name,
		service_version, banner FROM ports WHERE device_id = ? ORDER BY port_number`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	defer rows.Close()

	var out []models.Port
	for rows.Next() {
		var p models.Port
		var service, version, banner sql.NullString
		var protocol, state string
		if err := rows.Scan(&p.ID, &p.DeviceID, &p.PortNumber, &protocol, &state, &service, &version, &banner); err != nil {
			return nil, fmt.Errorf("scan port: %w", err)
		}
		p.Protocol = models.Protocol(protocol)
		p.State = models.PortState(state)
		p.ServiceName = service.String
		p.ServiceVersion = version.String
		p.Banner = banner.String
		out = append(out, p)
	}
	return out, nil
}

// upsertPortLocked matches a port by (device_id, port_number, protocol)
// as device_service.py does, creating it if absent.
func (s *Store) upsertPortLocked(ctx context.Context, deviceID string, p models.Port) error {
	var existingID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM ports WHERE device_id = ? AND port_number = ? AND protocol = ?`,
		deviceID, p.PortNumber, string(p.Protocol)).Scan(&existingID)

	if err == sql.ErrNoRows {
		if p.ID == "" {
			p.ID = deviceID + "-" + string(p.Protocol) + "-" + fmt.Sprint(p.PortNumber)
		}
		_, err = s.db.ExecContext(ctx, `INSERT INTO ports (id, device_id, port_number, protocol, state,
			service_name, service_version, banner) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, deviceID, p.PortNumber, string(p.Protocol), string(p.State), p.ServiceName, p.ServiceVersion, p.Banner)
		if err != nil {
			return fmt.Errorf("insert port: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup port: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `UPDATE ports SET state = ?, service_name = COALESCE(NULLIF(?, ''), service_name),
		service_version = COALESCE(NULLIF(?, ''), service_version) WHERE id = ?`,
		string(p.State), p.ServiceName, p.ServiceVersion, existingID)
	if err != nil {
		return fmt.Errorf("update port: %w", err)
	}
	return nil
}

func scanDevice(row *sql.Row) (models.Device, error) {
	return scanDeviceGeneric(row)
}

func scanDeviceRows(rows *sql.Rows) (models.Device, error) {
	return scanDeviceGeneric(rows)
}

func scanDeviceGeneric(row scannable) (models.Device, error) {
	var d models.Device
	var mac, hostname, vendor, osFamily, osVersion, deviceType, notes sql.NullString
	var status string
	var firstSeen, lastSeen int64

	if err := row.Scan(&d.ID, &d.IPAddress, &mac, &hostname, &vendor, &osFamily, &osVersion, &deviceType,
		&status, &firstSeen, &lastSeen, &notes); err != nil {
		return models.Device{}, err
	}

	d.MACAddress = mac.String
	d.Hostname = hostname.String
	d.Vendor = vendor.String
	d.OSFamily = osFamily.String
	d.OSVersion = osVersion.String
	d.DeviceType = deviceType.String
	d.Status = models.DeviceStatus(status)
	d.FirstSeen = time.Unix(firstSeen, 0).UTC()
	d.LastSeen = time.Unix(lastSeen, 0).UTC()
	d.Notes = notes.String
	return d, nil
}
