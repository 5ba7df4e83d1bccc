package dumaos

import (
	"context"
	"encoding/json"
	"fmt"
)

func (c *Client) GetAllDevices(ctx context.Context) ([]map[string]any, error) {
	return c.callRows(ctx, AppDeviceManager, "get_all_devices")
}

func (c *Client) GetValidOnlineInterfaces(ctx context.Context) ([]map[string]any, error) {
	return c.callRows(ctx, AppDeviceManager, "get_valid_online_interfaces")
}

func (c *Client) GetDHCPLeases(ctx context.Context) ([]map[string]any, error) {
	return c.callRows(ctx, AppDeviceManager, "get_dhcp_leases")
}

func (c *Client) GetUploadTree(ctx context.Context) (map[string]any, error) {
	return c.callTree(ctx, "get_upload_tree")
}

func (c *Client) GetDownloadTree(ctx context.Context) (map[string]any, error) {
	return c.callTree(ctx, "get_download_tree")
}

func (c *Client) GetThrotPercentage(ctx context.Context) ([]int, error) {
	raw, err := c.Call(ctx, AppQoS, "get_throt_percentage", nil)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var values []float64
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode get_throt_percentage result: %w", err)
	}
	out := make([]int, len(values))
	for i, value := range values {
		out[i] = int(value)
	}
	return out, nil
}

// GetSystemInfo unwraps the single-element list some firmware versions
// wrap the info mapping in.
func (c *Client) GetSystemInfo(ctx context.Context) (map[string]any, error) {
	raw, err := c.Call(ctx, AppSystemInfo, "get_system_info", nil)
	if err != nil {
		return nil, err
	}
	value := decodeAny(raw)
	if seq, ok := value.([]any); ok && len(seq) > 0 {
		value = seq[0]
	}
	if info, ok := value.(map[string]any); ok {
		return info, nil
	}
	return map[string]any{}, nil
}

func (c *Client) callRows(ctx context.Context, appID, method string) ([]map[string]any, error) {
	raw, err := c.Call(ctx, appID, method, nil)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", method, err)
	}
	return rows, nil
}

func (c *Client) callTree(ctx context.Context, method string) (map[string]any, error) {
	raw, err := c.Call(ctx, AppQoS, method, nil)
	if err != nil {
		return nil, err
	}
	return UnwrapTree(decodeAny(raw)), nil
}

func decodeAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	return value
}
