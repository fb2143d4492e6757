package onlinemis

import (
	"fmt"
	"onlinemis-backend/lib/htmlutil"
	"onlinemis-backend/lib/textutil"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type Announcement struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Sender   string `json:"sender"`
	Date     string `json:"date"`
	Content  string `json:"content"`
}

type HomeRecord struct {
	Announcements []Announcement `json:"announcements"`
}

var (
	// the home page builds its ticker from `pausecontent[i]='<html>';` assignments
	announcementRegex = regexp.MustCompile(`pausecontent\[\d+\]='(.*?)';`)
	categoryRegex     = regexp.MustCompile(`kategori\s*:(.*?)<br>`)
	senderRegex       = regexp.MustCompile(`oleh\s*:(.*?)<br>`)
	sentDateRegex     = regexp.MustCompile(`tanggal kirim\s*:(.*?)<br>`)
)

func firstGroup(re *regexp.Regexp, s string) string {
	groups := re.FindStringSubmatch(s)
	if len(groups) < 2 {
		return ""
	}
	return strings.TrimSpace(groups[1])
}

func ExtractHome(html []byte) (HomeRecord, error) {
	doc, err := parseHtml(html)
	if err != nil {
		return HomeRecord{}, fmt.Errorf("home: parse html: %w", err)
	}

	script, err := requireAnchor(ResourceHome, "announcements", doc.Selection, selectAnnouncementScript)
	if err != nil {
		return HomeRecord{}, err
	}

	record := HomeRecord{Announcements: []Announcement{}}
	for _, match := range announcementRegex.FindAllStringSubmatch(script.Text(), -1) {
		announcement, err := parseAnnouncement(match[1])
		if err != nil {
			return HomeRecord{}, err
		}
		record.Announcements = append(record.Announcements, announcement)
	}
	return record, nil
}

func parseAnnouncement(fragment string) (Announcement, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return Announcement{}, &FieldParseError{Resource: ResourceHome, Field: "announcement", Value: fragment, Err: err}
	}

	announcement := Announcement{
		Title:    htmlutil.CleanText(doc.Find(selectAnnouncementTitle).First()),
		Category: firstGroup(categoryRegex, fragment),
		Sender:   firstGroup(senderRegex, fragment),
		Date:     firstGroup(sentDateRegex, fragment),
	}

	// the content is whatever text remains once the labelled fields are removed
	content := textutil.CollapseWhitespace(doc.Text())
	if announcement.Title != "" {
		content = strings.Replace(content, announcement.Title, "", 1)
	}
	for _, field := range []struct {
		label string
		value string
	}{
		{label: "kategori", value: announcement.Category},
		{label: "oleh", value: announcement.Sender},
		{label: "tanggal kirim", value: announcement.Date},
	} {
		labelled := regexp.MustCompile(regexp.QuoteMeta(field.label) + `\s*:\s*` + regexp.QuoteMeta(field.value))
		content = labelled.ReplaceAllLiteralString(content, "")
	}
	announcement.Content = textutil.CollapseWhitespace(content)
	return announcement, nil
}
