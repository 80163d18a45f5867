package classifier

import (
	"strings"

	"github.com/glancelabs/glance/backend/internal/types"
)

// bundleCategories maps well-known bundle identifiers to categories.
// Unknown applications fall back to keyword matching, then Other.
var bundleCategories = map[string]types.Category{
	"com.apple.dt.xcode":      types.CategoryProductivity,
	"com.microsoft.vscode":    types.CategoryProductivity,
	"com.jetbrains.intellij":  types.CategoryProductivity,
	"com.jetbrains.goland":    types.CategoryProductivity,
	"com.sublimetext.4":       types.CategoryProductivity,
	"org.vim.macvim":          types.CategoryProductivity,
	"com.apple.terminal":      types.CategoryProductivity,
	"com.googlecode.iterm2":   types.CategoryProductivity,
	"com.microsoft.word":      types.CategoryProductivity,
	"com.microsoft.excel":     types.CategoryProductivity,
	"com.apple.iwork.pages":   types.CategoryProductivity,
	"com.apple.iwork.numbers": types.CategoryProductivity,
	"notion.id":               types.CategoryProductivity,
	"md.obsidian":             types.CategoryProductivity,
	"com.figma.desktop":       types.CategoryProductivity,

	"com.tinyspeck.slackmacgap": types.CategoryCommunication,
	"com.microsoft.teams2":      types.CategoryCommunication,
	"us.zoom.xos":               types.CategoryCommunication,
	"com.apple.mail":            types.CategoryCommunication,
	"com.apple.messages":        types.CategoryCommunication,
	"com.hnc.discord":           types.CategoryCommunication,
	"ru.keepcoder.telegram":     types.CategoryCommunication,
	"net.whatsapp.whatsapp":     types.CategoryCommunication,

	"com.spotify.client":      types.CategoryEntertainment,
	"com.apple.music":         types.CategoryEntertainment,
	"com.apple.tv":            types.CategoryEntertainment,
	"com.netflix.netflix":     types.CategoryEntertainment,
	"com.valvesoftware.steam": types.CategoryEntertainment,

	"com.apple.safari":           types.CategoryBrowsing,
	"com.google.chrome":          types.CategoryBrowsing,
	"org.mozilla.firefox":        types.CategoryBrowsing,
	"com.microsoft.edgemac":      types.CategoryBrowsing,
	"company.thebrowser.browser": types.CategoryBrowsing,
	"com.brave.browser":          types.CategoryBrowsing,
}

// nameKeywords catches apps whose bundle ID is unknown but whose display
// name clearly indicates a category.
var nameKeywords = []struct {
	keyword  string
	category types.Category
}{
	{"code", types.CategoryProductivity},
	{"editor", types.CategoryProductivity},
	{"terminal", types.CategoryProductivity},
	{"studio", types.CategoryProductivity},
	{"slack", types.CategoryCommunication},
	{"mail", types.CategoryCommunication},
	{"chat", types.CategoryCommunication},
	{"zoom", types.CategoryCommunication},
	{"music", types.CategoryEntertainment},
	{"video", types.CategoryEntertainment},
	{"game", types.CategoryEntertainment},
	{"browser", types.CategoryBrowsing},
	{"chrome", types.CategoryBrowsing},
	{"firefox", types.CategoryBrowsing},
	{"safari", types.CategoryBrowsing},
}

// Categorize resolves an application to its category. Pure lookup: exact
// bundle ID match first, then display-name keywords, then Other.
func Categorize(app types.AppInfo) types.Category {
	if category, ok := bundleCategories[strings.ToLower(app.BundleID)]; ok {
		return category
	}

	name := strings.ToLower(app.Name)
	for _, entry := range nameKeywords {
		if strings.Contains(name, entry.keyword) {
			return entry.category
		}
	}

	return types.CategoryOther
}
