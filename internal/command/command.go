/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package command

import (
    "fmt"
    "math"
    "regexp"
    "strconv"
    "strings"
    "time"

    "github.com/HamedShams/jira-changed/internal/domain"
    "github.com/HamedShams/jira-changed/internal/errs"
)

type Kind int

const (
    Unknown Kind = iota
    Changed
    Help
)

// Request is a resolved chat command. Window and Project are set for Changed.
type Request struct {
    Kind    Kind
    Window  domain.Window
    Project string
}

const (
    datePat = `(\d{4}-\d{1,2}-\d{1,2})`
    projPat = `(?:\s+([A-Za-z]{1,10}))?`
)

var (
    reCommand    = regexp.MustCompile(`(?i)^(?:/?j(?:ira)?\s+|/)changed(?:@\w+)?(?:\s+(.*))?$`)
    reDateDate   = regexp.MustCompile(`^` + datePat + `\s+` + datePat + projPat + `$`)
    reDateNumber = regexp.MustCompile(`^` + datePat + `\s+(\d+)` + projPat + `$`)
    reDate       = regexp.MustCompile(`^` + datePat + projPat + `$`)
    reNumber     = regexp.MustCompile(`^(\d+)` + projPat + `$`)
    reDefault    = regexp.MustCompile(`^(?:([A-Za-z]{1,10}))?$`)
)

// Parse resolves command text against now. Windows are built in now's location.
// "changed" only counts with a leading slash or a "jira"/"j" prefix, so plain
// conversation such as "changed my mind" is left alone.
// Unknown text yields Kind Unknown and no error; a recognised command with bad
// arguments yields an InputValidationError.
func Parse(text string, now time.Time) (Request, error) {
    text = strings.TrimSpace(text)
    switch strings.ToLower(strings.SplitN(text, "@", 2)[0]) {
    case "/start", "/help", "jira help", "/jira help", "j help":
        return Request{Kind: Help}, nil
    }
    m := reCommand.FindStringSubmatch(text)
    if m == nil { return Request{Kind: Unknown}, nil }
    args := strings.TrimSpace(m[1])
    loc := now.Location()
    today := domain.Day(now, loc)

    req := Request{Kind: Changed}
    var err error
    switch {
    case reDateDate.MatchString(args):
        a := reDateDate.FindStringSubmatch(args)
        if req.Window.Start, err = parseDay(a[1], loc); err != nil { return req, err }
        if req.Window.End, err = parseDay(a[2], loc); err != nil { return req, err }
        req.Project = a[3]
    case reDateNumber.MatchString(args):
        a := reDateNumber.FindStringSubmatch(args)
        if req.Window.End, err = parseDay(a[1], loc); err != nil { return req, err }
        n, err := parseDays(a[2])
        if err != nil { return req, err }
        req.Window.Start = req.Window.End.AddDate(0, 0, -n)
        req.Project = a[3]
    case reDate.MatchString(args):
        a := reDate.FindStringSubmatch(args)
        if req.Window.End, err = parseDay(a[1], loc); err != nil { return req, err }
        req.Window.Start = req.Window.End.AddDate(0, 0, -1)
        req.Project = a[2]
    case reNumber.MatchString(args):
        a := reNumber.FindStringSubmatch(args)
        n, err := parseDays(a[1])
        if err != nil { return req, err }
        req.Window = domain.Window{Start: today.AddDate(0, 0, -n), End: today}
        req.Project = a[2]
    case reDefault.MatchString(args):
        a := reDefault.FindStringSubmatch(args)
        req.Window = domain.Window{Start: today.AddDate(0, 0, -1), End: today}
        req.Project = a[1]
    default:
        return Request{Kind: Unknown}, errs.Invalid("Nope, didn't understand that! Try: jira changed [<date>] [<date>|<days>] [project]")
    }
    req.Project = strings.ToUpper(req.Project)
    return req, ValidateWindow(req.Window, now)
}

func parseDays(s string) (int, error) {
    n, err := strconv.Atoi(s)
    if err != nil { return 0, errs.Invalid(fmt.Sprintf("%q is not a sensible number of days", s)) }
    return n, nil
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
    t, err := time.ParseInLocation("2006-1-2", s, loc)
    if err != nil { return time.Time{}, errs.Invalid(fmt.Sprintf("This is pointless. %q is not a real date!", s)) }
    return t, nil
}

// ValidateWindow rejects zero dates, days after today (in now's location), and
// windows that are empty or inverted.
func ValidateWindow(w domain.Window, now time.Time) error {
    if w.Start.IsZero() || w.End.IsZero() { return errs.Invalid("This is pointless. You're not giving me real dates to work with!") }
    today := domain.Day(now, now.Location())
    if domain.Day(w.End, now.Location()).After(today) || domain.Day(w.Start, now.Location()).After(today) {
        return errs.Invalid("You can't really search for events which happen in the future, can you?")
    }
    switch {
    case w.End.Equal(w.Start):
        return errs.Invalid("You should give me at least one day to search for.")
    case w.End.Before(w.Start):
        return errs.Invalid("The start date you gave me is after the end date. What am I supposed to do with that?")
    }
    return nil
}

// FriendlyDay renders d as "today", "yesterday" or "YYYY-MM-DD (Nd ago)".
func FriendlyDay(d, now time.Time) string {
    loc := now.Location()
    today := domain.Day(now, loc)
    d = domain.Day(d, loc)
    switch {
    case d.Equal(today):
        return "today"
    case d.Equal(today.AddDate(0, 0, -1)):
        return "yesterday"
    }
    days := int(math.Round(today.Sub(d).Hours() / 24))
    return fmt.Sprintf("%s (%dd ago)", d.Format("2006-01-02"), days)
}

func HelpText() string {
    return strings.Join([]string{
        "Jira changed issues",
        "",
        "jira changed [project] - issues changed yesterday",
        "jira changed <days> [project] - issues changed during the last <days> days",
        "jira changed <date> <date> [project] - issues changed between the two dates",
        "jira changed <date> <days> [project] - issues changed during <days> days before <date>",
        "jira changed <date> [project] - issues changed the day before <date>",
        "",
        "Dates are YYYY-MM-DD. The project defaults to the configured one.",
    }, "\n")
}
