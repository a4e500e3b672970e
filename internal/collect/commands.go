package collect

import "github.com/HerbHall/hostprobe/internal/progress"

// Command pairs a category label with the shell command that produces it.
type Command struct {
	Label   string
	Command string
}

// CommandSet is a named, ordered list of commands. Name doubles as the
// progress phase.
type CommandSet struct {
	Name     string
	Commands []Command
}

// Labels returns the category labels in declaration order.
func (s CommandSet) Labels() []string {
	labels := make([]string, len(s.Commands))
	for i, c := range s.Commands {
		labels[i] = c.Label
	}
	return labels
}

// SystemInfoCommands is the fixed system information set.
func SystemInfoCommands() CommandSet {
	return CommandSet{
		Name: progress.PhaseSystemInfo,
		Commands: []Command{
			{Label: "Hostname", Command: "hostname"},
			{Label: "System Info", Command: "systeminfo"},
			{Label: "User Accounts", Command: "net users"},
			{Label: "Admin Group", Command: "net localgroup administrators"},
			{Label: "Running Services", Command: `wmic service list brief | findstr "Running"`},
		},
	}
}

// NetworkInfoCommands is the fixed network information set.
func NetworkInfoCommands() CommandSet {
	return CommandSet{
		Name: progress.PhaseNetworkInfo,
		Commands: []Command{
			{Label: "Network Shares", Command: "net share"},
			{Label: "Active Connections", Command: "netstat -naob"},
			{Label: "Routing Table", Command: "route print"},
			{Label: "ARP Cache", Command: "arp -a"},
			{Label: "IP Configuration", Command: "ipconfig /all"},
		},
	}
}
