// Package config loads and validates the mixer's YAML configuration file,
// its alias map, and its key material, following the
// read-whole-file-with-size-cap / unmarshal / verify pattern used
// throughout the gravwell ingesters (spec §6).
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// maxConfigSize guards against an operator accidentally pointing the mixer
// at a huge file; 2MB is already generous for a YAML config.
const maxConfigSize = 1024 * 1024 * 2

// SecInput is one secure (ECDSA-handshake) listener entry (spec §6:
// `sec_inputs: [ {listen_ip, listen_port, id?} ]`).
type SecInput struct {
	ListenIP   string `yaml:"listen_ip"`
	ListenPort int    `yaml:"listen_port"`
	ID         string `yaml:"id"`
}

// Bind returns the listener's "ip:port" address.
func (in SecInput) Bind() string {
	return net.JoinHostPort(in.ListenIP, strconv.Itoa(in.ListenPort))
}

// UDPInput is one plain UDP listener entry (spec §6:
// `udp_inputs: [ {listen_ip, listen_port, id?} ]`). ID, if set, is used as
// the fixed alias for every datagram arriving on this socket regardless of
// source IP (spec §4.8's "fixed alias").
type UDPInput struct {
	ListenIP   string `yaml:"listen_ip"`
	ListenPort int    `yaml:"listen_port"`
	ID         string `yaml:"id"`
}

// Bind returns the listener's "ip:port" address.
func (in UDPInput) Bind() string {
	return net.JoinHostPort(in.ListenIP, strconv.Itoa(in.ListenPort))
}

// ForwarderTarget is one downstream relay destination (spec §4.11).
type ForwarderTarget struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Config is the top-level mixer configuration (spec §6).
type Config struct {
	StationID          string            `yaml:"station_id"`
	Debug              bool              `yaml:"debug"`
	SecInputs          []SecInput        `yaml:"sec_inputs"`
	UDPInputs          []UDPInput        `yaml:"udp_inputs"`
	Forwarders         []ForwarderTarget `yaml:"forwarders"`
	UDPAliasMapFile    string            `yaml:"udp_alias_map_file"`
	AuthorizedKeysFile string            `yaml:"authorized_keys_file"`
	ServerKeyFile      string            `yaml:"server_key_file"`
	LogFile            string            `yaml:"log_file"`
	LogLevel           string            `yaml:"log_level"`
}

// Load reads path, parses it as YAML, and runs the validation rules of
// spec §6 before returning it.
func Load(path string) (*Config, error) {
	content, err := readCapped(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(content, &c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := verify(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func readCapped(path string) ([]byte, error) {
	fin, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fin.Close()
	fi, err := fin.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxConfigSize {
		return nil, fmt.Errorf("config: %s exceeds the %d byte limit", path, maxConfigSize)
	}
	content := make([]byte, fi.Size())
	if _, err := fin.Read(content); err != nil {
		return nil, err
	}
	return content, nil
}

func verify(c *Config) error {
	if len(c.SecInputs) == 0 && len(c.UDPInputs) == 0 {
		return errors.New("config: at least one of sec_inputs or udp_inputs is required")
	}
	if len(c.Forwarders) == 0 {
		return errors.New("config: at least one forwarder target is required")
	}
	if len(c.SecInputs) > 0 && (c.AuthorizedKeysFile == "" || c.ServerKeyFile == "") {
		return errors.New("config: sec_inputs requires authorized_keys_file and server_key_file")
	}
	binds := make(map[string]string)
	for i, in := range c.SecInputs {
		if in.ListenIP == "" || in.ListenPort <= 0 {
			return fmt.Errorf("config: sec_inputs[%d] missing listen_ip/listen_port", i)
		}
		if owner, ok := binds[in.Bind()]; ok {
			return fmt.Errorf("config: listen_ip/listen_port %s reused by sec_inputs[%d] and %s", in.Bind(), i, owner)
		}
		binds[in.Bind()] = fmt.Sprintf("sec_inputs[%d]", i)
	}
	for i, in := range c.UDPInputs {
		if in.ListenIP == "" || in.ListenPort <= 0 {
			return fmt.Errorf("config: udp_inputs[%d] missing listen_ip/listen_port", i)
		}
		if owner, ok := binds[in.Bind()]; ok {
			return fmt.Errorf("config: listen_ip/listen_port %s reused by udp_inputs[%d] and %s", in.Bind(), i, owner)
		}
		binds[in.Bind()] = fmt.Sprintf("udp_inputs[%d]", i)
	}
	for i, f := range c.Forwarders {
		if f.Host == "" || f.Port <= 0 {
			return fmt.Errorf("config: forwarders[%d] needs a host and a positive port", i)
		}
	}
	return nil
}

// aliasMapFile is the two accepted shapes of an alias map document (spec
// §6: "either a map `ip: alias` or `{udp_alias_map: [{ip, id}, ...]}`").
// Both are tried in turn.
type aliasMapFile struct {
	UDPAliasMap []struct {
		IP string `yaml:"ip"`
		ID string `yaml:"id"`
	} `yaml:"udp_alias_map"`
}

// LoadAliasMap reads an alias map document in either accepted shape and
// returns it as a flat ip -> alias map.
func LoadAliasMap(path string) (map[string]string, error) {
	content, err := readCapped(path)
	if err != nil {
		return nil, err
	}

	var flat map[string]string
	if err := yaml.Unmarshal(content, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	var wrapped aliasMapFile
	if err := yaml.Unmarshal(content, &wrapped); err != nil {
		return nil, fmt.Errorf("config: parsing alias map %s: %w", path, err)
	}
	out := make(map[string]string, len(wrapped.UDPAliasMap))
	for _, e := range wrapped.UDPAliasMap {
		if e.IP == "" {
			continue
		}
		out[e.IP] = e.ID
	}
	return out, nil
}

// AuthorizedKeyEntry is one entry of the authorized_keys_file (spec §6:
// `{authorized_clients: [{name, pubkey}]}`): a station name paired with its
// base64-encoded compressed ECDSA public key.
type AuthorizedKeyEntry struct {
	Name   string `yaml:"name"`
	Pubkey string `yaml:"pubkey"`
}

type authorizedKeysFile struct {
	Clients []AuthorizedKeyEntry `yaml:"authorized_clients"`
}

// LoadAuthorizedKeys reads the authorized_keys_file and decodes each
// entry's base64 public key into raw compressed-point bytes.
func LoadAuthorizedKeys(path string) (map[string][]byte, error) {
	content, err := readCapped(path)
	if err != nil {
		return nil, err
	}
	var doc authorizedKeysFile
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing authorized keys %s: %w", path, err)
	}
	out := make(map[string][]byte, len(doc.Clients))
	for _, e := range doc.Clients {
		if e.Name == "" || e.Pubkey == "" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(e.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("config: decoding public key for %s: %w", e.Name, err)
		}
		out[e.Name] = raw
	}
	return out, nil
}
