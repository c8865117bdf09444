package core

import "fmt"

// Protocol is an IANA assigned internet protocol number carried in the IPv4
// protocol field. Only the numbers listed here are decodable.
type Protocol uint8

const (
	ProtocolICMP      Protocol = 1
	ProtocolIGMP      Protocol = 2
	ProtocolGGP       Protocol = 3
	ProtocolIPinIP    Protocol = 4
	ProtocolST        Protocol = 5
	ProtocolTCP       Protocol = 6
	ProtocolCBT       Protocol = 7
	ProtocolEGP       Protocol = 8
	ProtocolIGP       Protocol = 9
	ProtocolBBNRCCMON Protocol = 10
	ProtocolNVPII     Protocol = 11
	ProtocolPUP       Protocol = 12
	ProtocolARGUS     Protocol = 13
	ProtocolEMCON     Protocol = 14
	ProtocolXNET      Protocol = 15
	ProtocolCHAOS     Protocol = 16
	ProtocolUDP       Protocol = 17
	ProtocolMUX       Protocol = 18
	ProtocolDCNMEAS   Protocol = 19
	ProtocolHMP       Protocol = 20
	ProtocolIPv6      Protocol = 41
	ProtocolGRE       Protocol = 47
	ProtocolESP       Protocol = 50
	ProtocolAH        Protocol = 51
	ProtocolOSPF      Protocol = 89
	ProtocolSCTP      Protocol = 132
)

var protocolNames = map[Protocol]string{
	ProtocolICMP:      "ICMP",
	ProtocolIGMP:      "IGMP",
	ProtocolGGP:       "GGP",
	ProtocolIPinIP:    "IPinIP",
	ProtocolST:        "ST",
	ProtocolTCP:       "TCP",
	ProtocolCBT:       "CBT",
	ProtocolEGP:       "EGP",
	ProtocolIGP:       "IGP",
	ProtocolBBNRCCMON: "BBN-RCC-MON",
	ProtocolNVPII:     "NVP-II",
	ProtocolPUP:       "PUP",
	ProtocolARGUS:     "ARGUS",
	ProtocolEMCON:     "EMCON",
	ProtocolXNET:      "XNET",
	ProtocolCHAOS:     "CHAOS",
	ProtocolUDP:       "UDP",
	ProtocolMUX:       "MUX",
	ProtocolDCNMEAS:   "DCN-MEAS",
	ProtocolHMP:       "HMP",
	ProtocolIPv6:      "IPv6",
	ProtocolGRE:       "GRE",
	ProtocolESP:       "ESP",
	ProtocolAH:        "AH",
	ProtocolOSPF:      "OSPF",
	ProtocolSCTP:      "SCTP",
}

// Known reports whether p is in the supported protocol table.
func (p Protocol) Known() bool {
	_, ok := protocolNames[p]
	return ok
}

func (p Protocol) String() string {
	if name, ok := protocolNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Protocol(%d)", uint8(p))
}

func (p Protocol) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
