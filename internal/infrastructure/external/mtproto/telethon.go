package mtproto

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/gotd/td/session"
)

// telethonVersion prefixes every string session.
const telethonVersion = "1"

const authKeySize = 256

// productionDCs are used when a stored session has no address.
var productionDCs = map[int]string{
	1: "149.154.175.53",
	2: "149.154.167.51",
	3: "149.154.175.100",
	4: "149.154.167.91",
	5: "91.108.56.130",
}

// EncodeTelethon serializes data into a Telethon string session:
// "1" + urlsafe base64 of dc(1) | ip(4 or 16) | port(2, big endian) | auth key(256).
func EncodeTelethon(data *session.Data) (string, error) {
	if data == nil {
		return "", errors.New("telethon: nil session")
	}
	if len(data.AuthKey) != authKeySize {
		return "", fmt.Errorf("telethon: auth key is %d bytes, want %d", len(data.AuthKey), authKeySize)
	}
	if data.DC <= 0 || data.DC > 255 {
		return "", fmt.Errorf("telethon: bad dc %d", data.DC)
	}

	host, port, err := splitAddr(data.Addr, data.DC)
	if err != nil {
		return "", err
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return "", fmt.Errorf("telethon: %q is not an ip address", host)
	}
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	} else {
		ip = ip.To16()
	}

	buf := make([]byte, 0, 1+len(ip)+2+authKeySize)
	buf = append(buf, byte(data.DC))
	buf = append(buf, ip...)
	buf = binary.BigEndian.AppendUint16(buf, port)
	buf = append(buf, data.AuthKey...)

	return telethonVersion + base64.URLEncoding.EncodeToString(buf), nil
}

func splitAddr(addr string, dc int) (string, uint16, error) {
	if addr == "" {
		host, ok := productionDCs[dc]
		if !ok {
			return "", 0, fmt.Errorf("telethon: no address for dc %d", dc)
		}
		return host, 443, nil
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("telethon: address %q: %w", addr, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("telethon: port %q: %w", portStr, err)
	}
	return host, uint16(port), nil
}
