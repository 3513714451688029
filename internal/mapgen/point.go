package mapgen

import (
	"html/template"
	"sort"
	"strconv"

	"github.com/blockedby/channel-map/internal/models"
)

// defaultAvatar is a green circle shown for chats without a photo.
const defaultAvatar = "data:image/svg+xml;base64,PHN2ZyB4bWxucz0iaHR0cDovL3d3dy53My5vcmcvMjAwMC9zdmciIHdpZHRoPSI0MCIgaGVpZ2h0PSI0MCIgdmlld0JveD0iMCAwIDQwIDQwIj48Y2lyY2xlIGN4PSIyMCIgY3k9IjIwIiByPSIyMCIgZmlsbD0iIzRDQUY1MCIvPjwvc3ZnPg=="

// ChannelPoint is one placed channel as the map script consumes it.
type ChannelPoint struct {
	Name          string  `json:"name"`
	LogoURL       *string `json:"logo_url"`
	MembersCount  *int    `json:"members_count"`
	MessagesCount *int    `json:"messages_count"`
	Description   string  `json:"description"`
	Username      *string `json:"username"`
	X             float64 `json:"x"` // longitude
	Y             float64 `json:"y"` // latitude
	Size          float64 `json:"size"`
}

func newChannelPoint(g models.Group) ChannelPoint {
	p := ChannelPoint{
		Name:          g.Title,
		MembersCount:  g.MembersCount,
		MessagesCount: g.MessagesCount,
		Description:   "no username",
	}
	if g.PhotoBase64 != nil && *g.PhotoBase64 != "" {
		logo := "data:image/jpeg;base64," + *g.PhotoBase64
		p.LogoURL = &logo
	}
	if g.Username != nil && *g.Username != "" {
		p.Username = g.Username
		p.Description = "@" + *g.Username
	}
	return p
}

// listItem is one entry of the sidebar.
type listItem struct {
	Name        string
	Logo        template.URL
	Link        string
	Subscribers int
	Messages    int
	Members     string
	MessagesTxt string
}

const noData = "no data"

func sidebar(points []ChannelPoint) []listItem {
	sorted := make([]ChannelPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		mi, mj := orZero(sorted[i].MembersCount), orZero(sorted[j].MembersCount)
		if mi != mj {
			return mi > mj
		}
		return orZero(sorted[i].MessagesCount) > orZero(sorted[j].MessagesCount)
	})

	items := make([]listItem, 0, len(sorted))
	for _, p := range sorted {
		item := listItem{
			Name:        p.Name,
			Logo:        template.URL(defaultAvatar),
			Link:        "#",
			Subscribers: orZero(p.MembersCount),
			Messages:    orZero(p.MessagesCount),
			Members:     countText(p.MembersCount),
			MessagesTxt: countText(p.MessagesCount),
		}
		if p.LogoURL != nil {
			item.Logo = template.URL(*p.LogoURL)
		}
		if p.Username != nil {
			item.Link = "https://t.me/" + *p.Username
		}
		items = append(items, item)
	}
	return items
}

func orZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func countText(v *int) string {
	if v == nil {
		return noData
	}
	return strconv.Itoa(*v)
}
