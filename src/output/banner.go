package output

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// BannerInfo holds the identity fields printed at the top of a run.
type BannerInfo struct {
	Version string
	SHA     string
	Branch  string
	Date    string
}

// Banner prints the edgefreight identity line.
func Banner(w io.Writer, info BannerInfo, color bool) {
	items := buildIdentityText(info, color)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "    %s\n", joinItems(items, color))
}

// buildIdentityText assembles the identity fields in display order.
func buildIdentityText(info BannerInfo, color bool) []string {
	var items []string
	if color {
		items = append(items, "\033[1;36medgefreight\033[0m")
		if info.Version != "" {
			items = append(items, "\033[36m"+info.Version+"\033[0m")
		}
		if info.SHA != "" && info.Branch != "" {
			items = append(items, "\033[36m"+info.SHA+" \033[0m· \033[36m"+info.Branch+"\033[0m")
		} else if info.SHA != "" {
			items = append(items, "\033[36m"+info.SHA+"\033[0m")
		}
		if info.Date != "" {
			items = append(items, "\033[36m"+info.Date+"\033[0m")
		}
	} else {
		items = append(items, "edgefreight")
		if info.Version != "" {
			items = append(items, info.Version)
		}
		if info.SHA != "" && info.Branch != "" {
			items = append(items, info.SHA+" · "+info.Branch)
		} else if info.SHA != "" {
			items = append(items, info.SHA)
		}
		if info.Date != "" {
			items = append(items, info.Date)
		}
	}
	return items
}

func joinItems(items []string, color bool) string {
	return strings.Join(items, "  "+Dimmed("│", color)+"  ")
}

// NewBannerInfo creates a BannerInfo with today's date.
// SHA and Branch should be populated from gitver.VersionInfo.
func NewBannerInfo(version, sha, branch string) BannerInfo {
	return BannerInfo{
		Version: version,
		SHA:     sha,
		Branch:  branch,
		Date:    time.Now().UTC().Format("2006-01-02"),
	}
}
