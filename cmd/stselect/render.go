package main

import (
	"fmt"
	"io"
	"time"

	"github.com/stselect/stselect/pkg/models"
)

func stateMark(s models.SyncState) string {
	switch s {
	case models.StateSyncing:
		return "[x]"
	case models.StatePartial:
		return "[~]"
	case models.StateIgnored:
		return "[ ]"
	case models.StateGlobalIgnore:
		return "[-]"
	case models.StateNewLocal:
		return "[+]"
	default:
		return "[?]"
	}
}

// humanBytes formats b with binary units.
func humanBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

// nodeSize renders a node's size. Incomplete sums are shown as a lower
// bound, and unknown sizes as "?".
func nodeSize(n *models.Node) string {
	if n.Size == nil {
		return "?"
	}
	s := humanBytes(*n.Size)
	if !n.SizeComplete {
		s = ">=" + s
	}
	return s
}

func printTree(w io.Writer, nodes []*models.Node) {
	printLevel(w, nodes, "")
}

func printLevel(w io.Writer, nodes []*models.Node, indent string) {
	for _, n := range nodes {
		name := n.Name
		if n.IsDir() {
			name += "/"
		}
		fmt.Fprintf(w, "%s %-12s %s%s\n", stateMark(n.SyncState), nodeSize(n), indent, name)
		if n.Children != nil {
			printLevel(w, n.Children, indent+"  ")
		}
	}
}

func printFolders(w io.Writer, folders []models.Folder, withStatus bool) {
	if withStatus {
		fmt.Fprintf(w, "%-20s  %-24s  %10s  %10s  %s\n", "ID", "LABEL", "GLOBAL", "LOCAL", "PATH")
	} else {
		fmt.Fprintf(w, "%-20s  %-24s  %-19s  %s\n", "ID", "LABEL", "LAST SCAN", "PATH")
	}
	for _, f := range folders {
		if withStatus {
			fmt.Fprintf(w, "%-20s  %-24s  %10s  %10s  %s\n",
				f.ID, truncate(f.DisplayName(), 24), humanBytes(f.GlobalBytes), humanBytes(f.LocalBytes), f.Path)
			continue
		}
		fmt.Fprintf(w, "%-20s  %-24s  %-19s  %s\n",
			f.ID, truncate(f.DisplayName(), 24), scanTime(f.LastScan), f.Path)
	}
}

func scanTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

