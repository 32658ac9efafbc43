package collect

import "github.com/zumanm1/netaudit/pkg/models"

// Capability tables: platform variant -> ordered command list, one table per
// data layer. Dispatch is over the typed Platform enum, never free-form
// strings.

var healthCommands = map[models.Platform][]string{
	models.PlatformIOS: {
		"show version",
		"show processes cpu | include CPU",
		"show memory statistics",
	},
	models.PlatformIOSXE: {
		"show version",
		"show processes cpu sorted | include CPU",
		"show platform resources",
	},
	models.PlatformIOSXR: {
		"show version",
		"show processes cpu | include CPU",
		"show memory summary",
	},
}

var interfaceCommands = map[models.Platform][]string{
	models.PlatformIOS: {
		"show ip interface brief",
		"show interfaces description",
	},
	models.PlatformIOSXE: {
		"show ip interface brief",
		"show interfaces description",
	},
	models.PlatformIOSXR: {
		"show ipv4 interface brief",
		"show interfaces description",
	},
}

var igpCommands = map[models.Platform][]string{
	models.PlatformIOS: {
		"show ip ospf neighbor",
		"show ip ospf interface brief",
	},
	models.PlatformIOSXE: {
		"show ip ospf neighbor",
		"show ip ospf interface brief",
	},
	models.PlatformIOSXR: {
		"show ospf neighbor",
		"show ospf interface brief",
	},
}

var bgpCommands = map[models.Platform][]string{
	models.PlatformIOS: {
		"show ip bgp summary",
		"show ip bgp vpnv4 all summary",
	},
	models.PlatformIOSXE: {
		"show ip bgp summary",
		"show ip bgp vpnv4 all summary",
	},
	models.PlatformIOSXR: {
		"show bgp summary",
		"show bgp vpnv4 unicast summary",
	},
}

var mplsCommands = map[models.Platform][]string{
	models.PlatformIOS: {
		"show mpls interfaces",
		"show mpls ldp neighbor",
	},
	models.PlatformIOSXE: {
		"show mpls interfaces",
		"show mpls ldp neighbor",
	},
	models.PlatformIOSXR: {
		"show mpls interfaces",
		"show mpls ldp neighbor brief",
	},
}

var vpnCommands = map[models.Platform][]string{
	models.PlatformIOS: {
		"show vrf",
		"show running-config | section vrf definition",
	},
	models.PlatformIOSXE: {
		"show vrf",
		"show running-config | section vrf definition",
	},
	models.PlatformIOSXR: {
		"show vrf all",
		"show running-config vrf",
	},
}

var staticCommands = map[models.Platform][]string{
	models.PlatformIOS: {
		"show ip route static",
		"show running-config | include ^ip route ",
	},
	models.PlatformIOSXE: {
		"show ip route static",
		"show running-config | include ^ip route ",
	},
	models.PlatformIOSXR: {
		"show route static",
		"show running-config router static",
	},
}
