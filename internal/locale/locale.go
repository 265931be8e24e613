// Package locale provides the user-facing strings of the assistant.
//
// Every string is a template identified by a [Key]. Placeholders have the form
// {name} and are filled by [Catalog.Text]. English and Spanish catalogs are
// built in; one is selected by [Language] and any subset of its strings can be
// overridden from configuration.
package locale

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Key identifies one message template.
type Key string

const (
	MicrophoneError     Key = "microphone_error"
	OutputError         Key = "output_error"
	ConnectionError     Key = "connection_error"
	TransportError      Key = "transport_error"
	SystemAck           Key = "system_ack"
	ApplicationAck      Key = "application_ack"
	MediaAck            Key = "media_ack"
	MediaAckTarget      Key = "media_ack_target"
	ReminderSet         Key = "reminder_set"
	ReminderSetTomorrow Key = "reminder_set_tomorrow"
	ReminderSetIn       Key = "reminder_set_in"
	ReminderSetInMinute Key = "reminder_set_in_minute"
	ReminderTimeInvalid Key = "reminder_time_invalid"
	ReminderDue         Key = "reminder_due"
	Searching           Key = "searching"
	SearchFailed        Key = "search_failed"
	ToolFailed          Key = "tool_failed"
	TimeFormat          Key = "time_format"

	ActionShutdown   Key = "action_shutdown"
	ActionRestart    Key = "action_restart"
	ActionOpen       Key = "action_open"
	ActionClose      Key = "action_close"
	ActionPlay       Key = "action_play"
	ActionPause      Key = "action_pause"
	ActionVolumeUp   Key = "action_volume_up"
	ActionVolumeDown Key = "action_volume_down"
)

// Language selects a built-in catalog.
type Language string

const (
	English Language = "en"
	Spanish Language = "es"
)

// bundles holds the built-in catalogs. English is complete; other languages
// fall back to it for keys they lack.
var bundles = map[Language]map[Key]string{
	English: defaults,
	Spanish: spanish,
}

// defaults holds the English templates.
var defaults = map[Key]string{
	MicrophoneError:     "I couldn't access your microphone. Please check the device and its permissions.",
	OutputError:         "I couldn't open the audio output. Please check your speakers.",
	ConnectionError:     "I couldn't connect to the assistant service. Please try again.",
	TransportError:      "The connection to the assistant was lost.",
	SystemAck:           "I would {action} your computer now, but for security reasons I can't control the system directly.",
	ApplicationAck:      "I would {action} {app} now, but for security reasons I can't control applications directly.",
	MediaAck:            "I would {action} now, but for security reasons I can't control media playback directly.",
	MediaAckTarget:      "I would {action} on {target} now, but for security reasons I can't control media playback directly.",
	ReminderSet:         "Reminder set: \"{text}\" at {time}.",
	ReminderSetTomorrow: "Reminder set: \"{text}\" tomorrow at {time}.",
	ReminderSetIn:       "Reminder set: \"{text}\" in {minutes} minutes.",
	ReminderSetInMinute: "Reminder set: \"{text}\" in 1 minute.",
	ReminderTimeInvalid: "Sorry, I couldn't understand the time for that reminder.",
	ReminderDue:         "Reminder: {text}",
	Searching:           "Searching the web for \"{query}\"...",
	SearchFailed:        "Sorry, the web search failed. Please try again.",
	ToolFailed:          "Sorry, I couldn't complete that request.",
	TimeFormat:          "3:04 PM",

	ActionShutdown:   "shut down",
	ActionRestart:    "restart",
	ActionOpen:       "open",
	ActionClose:      "close",
	ActionPlay:       "resume playback",
	ActionPause:      "pause playback",
	ActionVolumeUp:   "turn the volume up",
	ActionVolumeDown: "turn the volume down",
}

var (
	// ErrUnknownKey is returned when an override names a key that does not
	// exist.
	ErrUnknownKey = errors.New("locale: unknown key")

	// ErrUnknownLanguage is returned for a language without a built-in
	// catalog.
	ErrUnknownLanguage = errors.New("locale: unknown language")
)

// ParseLanguage maps a config value to a [Language]. The empty string selects
// [English].
func ParseLanguage(s string) (Language, error) {
	if s == "" {
		return English, nil
	}
	lang := Language(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := bundles[lang]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
	}
	return lang, nil
}

// Languages returns every built-in language in sorted order.
func Languages() []Language {
	return slices.Sorted(maps.Keys(bundles))
}

// Catalog resolves keys to templates. It is safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	lang      Language
	templates map[Key]string
}

// New returns a Catalog with the built-in strings of lang plus overrides.
func New(lang Language, overrides map[string]string) (*Catalog, error) {
	c := &Catalog{}
	if err := c.Replace(lang, overrides); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns a Catalog with the English strings only.
func Default() *Catalog {
	return &Catalog{lang: English, templates: maps.Clone(defaults)}
}

// Language returns the language of the active built-in strings.
func (c *Catalog) Language() Language {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lang
}

// Validate checks that every override names a known key.
func Validate(overrides map[string]string) error {
	var errs []error
	for _, k := range slices.Sorted(maps.Keys(overrides)) {
		if _, ok := defaults[Key(k)]; !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownKey, k))
		}
	}
	return errors.Join(errs...)
}

// Replace switches to the built-in strings of lang and swaps the active
// overrides. Keys missing from overrides fall back to the built-in strings.
// On error the catalog is left unchanged.
func (c *Catalog) Replace(lang Language, overrides map[string]string) error {
	bundle, ok := bundles[lang]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	if err := Validate(overrides); err != nil {
		return err
	}
	t := maps.Clone(defaults)
	maps.Copy(t, bundle)
	for k, v := range overrides {
		t[Key(k)] = v
	}
	c.mu.Lock()
	c.lang, c.templates = lang, t
	c.mu.Unlock()
	return nil
}

// Text renders the template for key. args are name/value pairs substituted
// for {name} placeholders; a trailing unpaired name is ignored. Unknown keys
// render as the key itself.
func (c *Catalog) Text(key Key, args ...string) string {
	c.mu.RLock()
	tmpl, ok := c.templates[key]
	c.mu.RUnlock()
	if !ok {
		return string(key)
	}
	if len(args) < 2 {
		return tmpl
	}
	pairs := make([]string, 0, len(args)&^1)
	for i := 0; i+1 < len(args); i += 2 {
		pairs = append(pairs, "{"+args[i]+"}", args[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Keys returns every known key in sorted order.
func Keys() []Key {
	return slices.Sorted(maps.Keys(defaults))
}
