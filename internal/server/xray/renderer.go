// Package xray turns config profiles into Xray inbound fragments and merges
// them into the administrator's base template.
package xray

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/boleyla/panel/internal/common"
	"github.com/boleyla/panel/internal/server/models"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Fragment is a partial Xray document, {"inbounds":[...]} for one profile.
type Fragment map[string]any

const defaultListen = "0.0.0.0"

// Renderer builds fragments. It holds no per-call state and is safe for
// concurrent use.
type Renderer struct {
	basePort int
	validate *validator.Validate
}

// NewRenderer returns a Renderer that places a profile without an explicit
// port on basePort + profile id.
func NewRenderer(basePort int) *Renderer {
	return &Renderer{
		basePort: basePort,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Render builds the inbound of one profile. A profile whose account or server
// is gone fails with an error matching both common.ErrorRender and
// common.ErrorNotFound. An expired ctx is returned as is.
func (r *Renderer) Render(ctx context.Context, v models.ProfileView) (Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := v.Profile
	if v.Account == nil {
		return nil, fmt.Errorf("%w: profile %d: account %d: %w", common.ErrorRender, p.ID, p.AccountID, common.ErrorNotFound)
	}
	if v.Server == nil {
		return nil, fmt.Errorf("%w: profile %d: server %d: %w", common.ErrorRender, p.ID, p.ServerID, common.ErrorNotFound)
	}

	raw, err := parseConfigData(p.ConfigData)
	if err != nil {
		return nil, fmt.Errorf("%w: profile %d: %w", common.ErrorRender, p.ID, err)
	}

	in, err := r.inbound(p, v.Account, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: profile %d: %w", common.ErrorRender, p.ID, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Fragment{"inbounds": []any{in}}, nil
}

func parseConfigData(s string) (map[string]any, error) {
	if s == "" {
		return map[string]any{}, nil
	}
	var raw any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("config_data: %w", err)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.New("config_data: not a JSON object")
	}
	return m, nil
}

// integralNumbers rejects JSON numbers with a fraction where an integer
// field is expected. mapstructure would truncate them otherwise.
func integralNumbers(from, to reflect.Kind, data any) (any, error) {
	if from != reflect.Float64 {
		return data, nil
	}
	switch to {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return data, nil
	}
	f := data.(float64)
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, fmt.Errorf("%v is not an integer", f)
	}
	return int64(f), nil
}

func (r *Renderer) decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.DecodeHookFuncKind(integralNumbers),
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("config_data: %w", err)
	}
	if err := r.validate.Struct(out); err != nil {
		return fmt.Errorf("config_data: %w", err)
	}
	return nil
}

func (r *Renderer) inbound(p models.ConfigProfile, acc *models.AccountRef, raw map[string]any) (map[string]any, error) {
	email := strconv.FormatInt(p.ID, 10) + "." + acc.Username

	var (
		t        Transport
		settings map[string]any
	)
	switch p.Protocol {
	case ProtocolVLESS:
		var s vlessSettings
		if err := r.decode(raw, &s); err != nil {
			return nil, err
		}
		client := map[string]any{"id": s.ID, "email": email}
		if s.Flow != "" {
			client["flow"] = s.Flow
		}
		t = s.Transport
		settings = map[string]any{"clients": []any{client}, "decryption": "none"}
	case ProtocolVMess:
		var s vmessSettings
		if err := r.decode(raw, &s); err != nil {
			return nil, err
		}
		t = s.Transport
		settings = map[string]any{"clients": []any{
			map[string]any{"id": s.ID, "alterId": s.AlterID, "email": email},
		}}
	case ProtocolTrojan:
		var s trojanSettings
		if err := r.decode(raw, &s); err != nil {
			return nil, err
		}
		t = s.Transport
		settings = map[string]any{"clients": []any{
			map[string]any{"password": s.Password, "email": email},
		}}
	case ProtocolShadowsocks:
		var s shadowsocksSettings
		if err := r.decode(raw, &s); err != nil {
			return nil, err
		}
		network := "tcp,udp"
		if s.Network != "" && s.Network != "both" {
			network = s.Network
		}
		t = Transport{Listen: s.Listen, Port: s.Port}
		settings = map[string]any{
			"method":   s.Method,
			"password": s.Password,
			"network":  network,
			"email":    email,
		}
	default:
		return nil, fmt.Errorf("unknown protocol %q", p.Protocol)
	}

	port := t.Port
	if port == 0 {
		port = r.basePort + int(p.ID)
		if port > 65535 {
			return nil, fmt.Errorf("assigned port %d is out of range", port)
		}
	}
	listen := t.Listen
	if listen == "" {
		listen = defaultListen
	}

	in := map[string]any{
		"tag":      "profile-" + strconv.FormatInt(p.ID, 10),
		"listen":   listen,
		"port":     port,
		"protocol": p.Protocol,
		"settings": settings,
	}
	if ss := streamSettings(t); ss != nil {
		in["streamSettings"] = ss
	}
	return in, nil
}

func streamSettings(t Transport) map[string]any {
	if t.Network == "" && t.Security == "" {
		return nil
	}
	network := t.Network
	if network == "" {
		network = "tcp"
	}
	ss := map[string]any{"network": network}
	if t.Security != "" {
		ss["security"] = t.Security
	}
	switch network {
	case "ws", "httpupgrade":
		opts := map[string]any{}
		if t.Path != "" {
			opts["path"] = t.Path
		}
		if t.Host != "" {
			opts["host"] = t.Host
		}
		ss[network+"Settings"] = opts
	case "grpc":
		ss["grpcSettings"] = map[string]any{"serviceName": t.ServiceName}
	case "h2":
		opts := map[string]any{}
		if t.Path != "" {
			opts["path"] = t.Path
		}
		if t.Host != "" {
			opts["host"] = []any{t.Host}
		}
		ss["httpSettings"] = opts
	}
	return ss
}
