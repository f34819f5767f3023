package dashboard

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hitoshi/devdash/internal/model"
)

// knownSites はホスト名（またはホスト名+パス）の部分一致で付与する既定タイトル。
// 先頭から順に評価する。
var knownSites = []struct {
	match string
	label string
}{
	{"udemy.com", "Udemy Course"},
	{"coursera.org", "Coursera Course"},
	{"edx.org", "edX Course"},
	{"khanacademy.org", "Khan Academy"},
	{"freecodecamp.org", "freeCodeCamp"},
	{"w3schools.com", "W3Schools Tutorial"},
	{"mdn.web", "MDN Web Docs"},
	{"stackoverflow.com", "Stack Overflow"},
	{"github.com", "GitHub Repository"},
	{"medium.com", "Medium Article"},
	{"dev.to", "Dev.to Article"},
	{"css-tricks.com", "CSS-Tricks"},
	{"smashingmagazine.com", "Smashing Magazine"},
	{"alistapart.com", "A List Apart"},
	{"sitepoint.com", "SitePoint"},
	{"tutsplus.com", "Tuts+ Tutorial"},
	{"pluralsight.com", "Pluralsight Course"},
	{"skillshare.com", "Skillshare Class"},
	{"linkedin.com/learning", "LinkedIn Learning"},
	{"amazon.com", "Amazon Book"},
	{"goodreads.com", "Goodreads Book"},
	{"investopedia.com", "Investopedia Article"},
	{"nerdwallet.com", "NerdWallet Article"},
	{"mint.com", "Mint Article"},
	{"zillow.com", "Zillow Property"},
	{"realtor.com", "Realtor.com"},
	{"redfin.com", "Redfin Property"},
	{"myfitnesspal.com", "MyFitnessPal"},
	{"fitbit.com", "Fitbit"},
	{"strava.com", "Strava"},
	{"bodybuilding.com", "Bodybuilding.com"},
	{"acefitness.org", "ACE Fitness"},
	{"nasm.org", "NASM"},
	{"producthunt.com", "Product Hunt"},
	{"mindtheproduct.com", "Mind the Product"},
	{"svpg.com", "SVPG"},
	{"martycagan.com", "Marty Cagan"},
	{"openai.com", "OpenAI"},
	{"anthropic.com", "Anthropic"},
	{"cursor.sh", "Cursor AI"},
	{"copilot.microsoft.com", "Microsoft Copilot"},
	{"bard.google.com", "Google Bard"},
	{"claude.ai", "Claude AI"},
	{"figma.com", "Figma"},
	{"sketch.com", "Sketch"},
	{"invisionapp.com", "InVision"},
	{"adobe.com/xd", "Adobe XD"},
	{"behance.net", "Behance"},
	{"dribbble.com", "Dribbble"},
}

var courseHosts = []string{
	"udemy.com", "coursera.org", "edx.org", "pluralsight.com", "skillshare.com", "linkedin.com/learning",
}

var bookHosts = []string{"amazon.com", "goodreads.com"}

// ExtractTitle はネットワークアクセスなしでURLから仮タイトルを推定する。
// 解析できないURLの場合は "New Resource" を返す。
func ExtractTitle(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "New Resource"
	}
	host := strings.ToLower(u.Hostname())

	if isYouTubeHost(host) {
		if v := u.Query().Get("v"); v != "" {
			return "YouTube Video (" + v + ")"
		}
		if host == "youtu.be" {
			if id := strings.Trim(u.Path, "/"); id != "" {
				return "YouTube Video (" + id + ")"
			}
		}
		return "YouTube Video"
	}

	hostPath := host + strings.ToLower(u.EscapedPath())
	for _, site := range knownSites {
		if strings.Contains(host, site.match) || (strings.Contains(site.match, "/") && strings.Contains(hostPath, site.match)) {
			return site.label
		}
	}

	domain := strings.Replace(host, "www.", "", 1)
	r, size := utf8.DecodeRuneInString(domain)
	if r == utf8.RuneError {
		return "New Resource"
	}
	return string(unicode.ToUpper(r)) + domain[size:] + " Resource"
}

// InferType はURL文字列から種類を判定する。
// 判定できないものは website とする。
func InferType(rawURL string) model.ItemType {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, "youtube.com") || strings.Contains(lower, "youtu.be"):
		return model.ItemTypeYouTube
	case containsAny(lower, courseHosts):
		return model.ItemTypeCourse
	case containsAny(lower, bookHosts):
		return model.ItemTypeBook
	default:
		return model.ItemTypeWebsite
	}
}

// WantsTitleFetch は実タイトルのバックグラウンド取得対象かどうかを返す。
func WantsTitleFetch(t model.ItemType) bool {
	return t == model.ItemTypeYouTube || t == model.ItemTypeWebsite
}

func isYouTubeHost(host string) bool {
	return strings.Contains(host, "youtube.com") || strings.Contains(host, "youtu.be")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
