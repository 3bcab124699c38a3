package xray

// Protocol tags accepted in a profile.
const (
	ProtocolVLESS       = "vless"
	ProtocolVMess       = "vmess"
	ProtocolTrojan      = "trojan"
	ProtocolShadowsocks = "shadowsocks"
)

// Transport holds the listener and stream fields shared by every protocol.
// A zero Port means the renderer assigns one.
type Transport struct {
	Listen      string `mapstructure:"listen" validate:"omitempty,ip"`
	Port        int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Network     string `mapstructure:"network" validate:"omitempty,oneof=tcp ws grpc h2 httpupgrade"`
	Security    string `mapstructure:"security" validate:"omitempty,oneof=none tls reality"`
	Path        string `mapstructure:"path" validate:"omitempty,startswith=/"`
	ServiceName string `mapstructure:"serviceName"`
	Host        string `mapstructure:"host" validate:"omitempty,hostname_rfc1123"`
}

type vlessSettings struct {
	Transport `mapstructure:",squash"`
	ID        string `mapstructure:"id" validate:"required,uuid"`
	Flow      string `mapstructure:"flow" validate:"omitempty,oneof=xtls-rprx-vision"`
}

type vmessSettings struct {
	Transport `mapstructure:",squash"`
	ID        string `mapstructure:"id" validate:"required,uuid"`
	AlterID   int    `mapstructure:"alterId" validate:"min=0,max=65535"`
}

type trojanSettings struct {
	Transport `mapstructure:",squash"`
	Password  string `mapstructure:"password" validate:"required,min=8"`
}

type shadowsocksSettings struct {
	Listen   string `mapstructure:"listen" validate:"omitempty,ip"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Method   string `mapstructure:"method" validate:"required,oneof=aes-128-gcm aes-256-gcm chacha20-ietf-poly1305 2022-blake3-aes-128-gcm 2022-blake3-aes-256-gcm"`
	Password string `mapstructure:"password" validate:"required"`
	Network  string `mapstructure:"network" validate:"omitempty,oneof=tcp udp both"`
}
