package expr

import (
	"encoding/binary"
	"fmt"
	"net"
)

// CIDRSubnet calculates a subnet address given a network address, a netmask size increase, and a subnet number.
//
// Parameters:
//   - prefix: The network prefix (e.g., "10.0.0.0/16")
//   - newbits: The number of additional bits to add to the prefix length (e.g., 8 for /24 inside /16)
//   - netnum: The zero-based index of the subnet to calculate
//
// Only IPv4 is supported.
func CIDRSubnet(prefix string, newbits int, netnum int) (string, error) {
	network, err := parseIPv4Prefix(prefix)
	if err != nil {
		return "", err
	}

	maskSize, totalBits := network.Mask.Size()
	newMaskSize := maskSize + newbits

	if newbits < 0 || newMaskSize > totalBits {
		return "", fmt.Errorf("prefix extension of %d bits is invalid for %s", newbits, prefix)
	}

	maxSubnets := 1 << newbits
	if netnum < 0 || netnum >= maxSubnets {
		return "", fmt.Errorf("subnet number %d exceeds max subnets %d", netnum, maxSubnets)
	}

	subnetSize := uint64(1) << (totalBits - newMaskSize)
	// #nosec G115
	ipInt := ipToUint(network.IP) + uint64(netnum)*subnetSize

	return fmt.Sprintf("%s/%d", uintToIP(ipInt).String(), newMaskSize), nil
}

// CIDRHost calculates a full host IP address for a given network address and host number.
// A negative hostnum counts back from the end of the range.
func CIDRHost(prefix string, hostnum int) (string, error) {
	network, err := parseIPv4Prefix(prefix)
	if err != nil {
		return "", err
	}

	maskSize, totalBits := network.Mask.Size()
	maxHosts := uint64(1) << (totalBits - maskSize)

	var offset uint64
	if hostnum < 0 {
		abs := uint64(-hostnum)
		if abs > maxHosts {
			return "", fmt.Errorf("host number %d exceeds max hosts %d", hostnum, maxHosts)
		}
		offset = maxHosts - abs
	} else {
		offset = uint64(hostnum)
		if offset >= maxHosts {
			return "", fmt.Errorf("host number %d exceeds max hosts %d", hostnum, maxHosts)
		}
	}

	return uintToIP(ipToUint(network.IP) + offset).String(), nil
}

func parseIPv4Prefix(prefix string) (*net.IPNet, error) {
	_, network, err := net.ParseCIDR(prefix)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR prefix: %w", err)
	}
	if network.IP.To4() == nil {
		return nil, fmt.Errorf("only IPv4 addresses are supported, got %s", prefix)
	}
	return network, nil
}

func ipToUint(ip net.IP) uint64 {
	if ip4 := ip.To4(); ip4 != nil {
		return uint64(binary.BigEndian.Uint32(ip4))
	}
	return 0
}

func uintToIP(val uint64) net.IP {
	ip := make(net.IP, 4)
	// #nosec G115
	binary.BigEndian.PutUint32(ip, uint32(val))
	return ip
}
