package scraper

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Pal-droid/anizone/internal/htmlutil"
	"github.com/Pal-droid/anizone/internal/models"
)

var italianMonths = map[string]time.Month{
	"gennaio":   time.January,
	"febbraio":  time.February,
	"marzo":     time.March,
	"aprile":    time.April,
	"maggio":    time.May,
	"giugno":    time.June,
	"luglio":    time.July,
	"agosto":    time.August,
	"settembre": time.September,
	"ottobre":   time.October,
	"novembre":  time.November,
	"dicembre":  time.December,
}

var (
	dateRangeRe = regexp.MustCompile(`(?i)(\d{1,2})\s+(gennaio|febbraio|marzo|aprile|maggio|giugno|luglio|agosto|settembre|ottobre|novembre|dicembre)(?:\s+(\d{4}))?\s*[-–]\s*\d{1,2}\s+(?:gennaio|febbraio|marzo|aprile|maggio|giugno|luglio|agosto|settembre|ottobre|novembre|dicembre)`)
	clockRe     = regexp.MustCompile(`(\d{1,2})[:.](\d{2})`)
)

// ParseDateRangeStart parses the start of a header like
// "8 settembre - 15 settembre". The year comes from the header when present,
// else from now.
func ParseDateRangeStart(text string, now time.Time) (time.Time, bool) {
	m := dateRangeRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	month := italianMonths[strings.ToLower(m[2])]
	year := now.Year()
	if m[3] != "" {
		if y, err := strconv.Atoi(m[3]); err == nil {
			year = y
		}
	}
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location()), true
}

// clockMinutes converts "HH:MM" to minutes after midnight, or -1.
func clockMinutes(s string) int {
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return -1
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	if h > 23 || min > 59 {
		return -1
	}
	return h*60 + min
}

// SortScheduleItems orders items by broadcast time. Unparsable times go last
// and ties keep page order.
func SortScheduleItems(items []models.ScheduleItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := clockMinutes(items[i].Time), clockMinutes(items[j].Time)
		if a < 0 {
			return false
		}
		if b < 0 {
			return true
		}
		return a < b
	})
}

type scheduleSection struct {
	day   string
	items []models.ScheduleItem
}

// ParseSchedule parses the weekly schedule page. Each day section gets an
// absolute date by offsetting from the start of the header range; the
// undetermined bucket is skipped.
func ParseSchedule(html []byte, base string, now time.Time) ([]models.DaySchedule, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	start, ok := ParseDateRangeStart(doc.Find("body").Text(), now)
	if !ok {
		// without a header the week is assumed to start today
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	}

	sections, _ := FirstNonEmpty(doc,
		Strategy[scheduleSection]{Name: "schedule-day", Extract: scheduleSections(".schedule .day", base)},
		Strategy[scheduleSection]{Name: "data-day", Extract: scheduleSections("[data-day]", base)},
	)

	days := make([]models.DaySchedule, 0, len(sections))
	index := 0
	for _, sec := range sections {
		if strings.Contains(strings.ToLower(sec.day), "indeterminat") {
			continue
		}
		SortScheduleItems(sec.items)
		days = append(days, models.DaySchedule{
			Day:   sec.day,
			Date:  start.AddDate(0, 0, index),
			Items: sec.items,
		})
		index++
	}
	return days, nil
}

func scheduleSections(selector, base string) func(*goquery.Document) []scheduleSection {
	return func(doc *goquery.Document) []scheduleSection {
		var out []scheduleSection
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			name := htmlutil.CleanText(s.Find(".day-name, .title, h3, h4").First().Text())
			if name == "" {
				name = htmlutil.CleanText(s.AttrOr("data-day", ""))
			}
			sec := scheduleSection{day: name, items: []models.ScheduleItem{}}
			s.Find(".item").Each(func(_ int, it *goquery.Selection) {
				link := it.Find("a.name, a[href]").First()
				title := htmlutil.CleanText(link.Text())
				if title == "" {
					title = htmlutil.CleanText(link.AttrOr("title", ""))
				}
				if title == "" {
					return
				}
				sec.items = append(sec.items, models.ScheduleItem{
					Time:    htmlutil.CleanText(it.Find(".time").First().Text()),
					Title:   title,
					Episode: htmlutil.CleanText(it.Find(".episode, .ep").First().Text()),
					Href:    htmlutil.Absolutize(link.AttrOr("href", ""), base),
					Image:   htmlutil.Absolutize(imageSrc(it.Find("img").First()), base),
				})
			})
			out = append(out, sec)
		})
		return out
	}
}
