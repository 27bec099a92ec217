package usecases

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"ukwikibot/internal/entities"
)

// wordClass is a letter-or-digit run with the separators allowed in titles.
const wordClass = `[\p{L}\p{M}\p{N}_,\s'’ʼ-]`

// tail stops an open-ended capture before trailing question marks.
const tail = `\s*\?*\s*$`

// MatchRule pairs an intent with a case-insensitive pattern that has at
// most one capturing group.
type MatchRule struct {
	Intent  entities.Intent
	Pattern *regexp.Regexp
}

// CommandRule maps a literal command word to an intent.
type CommandRule struct {
	Command string
	Intent  entities.Intent
}

// ContainsRule maps a literal substring to an intent.
type ContainsRule struct {
	Substring string
	Intent    entities.Intent
}

// Match is the outcome of a successful classification.
type Match struct {
	Intent entities.Intent `json:"intent"`
	Args   []string        `json:"args"`
}

// Rule order is significant: the first matching pattern wins.
var defaultRules = []MatchRule{
	rule(entities.IntentWhatIs, `(?:[шщ]о таке |хто такий |хто так[аіе] )(`+wordClass+`+)\??`),
	rule(entities.IntentLink, `\[\[(.+?)]]`),
	rule(entities.IntentBirthday, `(?:коли народи(?:вся|лась) |дата народження )(`+wordClass+`+)\??`),
	rule(entities.IntentDeathday, `(?:коли помер(?:ла)? |дата смерті )(.+?)`+tail),
	rule(entities.IntentFieldOfWork, `@ukwikibot.*(?:спеціалізація |сфера роботи )(.+?)`+tail),
	rule(entities.IntentEducation, `@ukwikibot.*(?:освіта |де навча(?:вся|лася|лась) )(.+?)`+tail),
	rule(entities.IntentCoords, `(?:де розташован(?:ий|а|е|і) |де знаходиться )(.+?)`+tail),
	rule(entities.IntentCoordsGen, `координати (.+?)`+tail),
	rule(entities.IntentImage, `(?:знайди|покажи) (?:фото |зображення )(.+?)`+tail),
	// A mention glued to a command ("/help@ukwikibot") is left to the command table.
	rule(entities.IntentUkWikiBot, `(?:^|\s)@ukwikibot`),
}

var defaultCommands = []CommandRule{
	{Command: "help", Intent: entities.IntentHelp},
	{Command: "start", Intent: entities.IntentHelp},
	{Command: "random", Intent: entities.IntentRandom},
	{Command: "wiki", Intent: entities.IntentWiki},
}

var defaultContains = []ContainsRule{
	{Substring: "@ukwikibot", Intent: entities.IntentUkWikiBot},
	{Substring: "!вікі", Intent: entities.IntentWiki},
	{Substring: "!wiki", Intent: entities.IntentWiki},
}

func rule(intent entities.Intent, pattern string) MatchRule {
	return MatchRule{Intent: intent, Pattern: regexp.MustCompile(`(?im)` + pattern)}
}

// Router classifies free text into an intent and its arguments. Its tables
// are read-only after construction, so a Router is safe for concurrent use.
type Router struct {
	rules        []MatchRule
	commands     map[string]entities.Intent
	commandOrder []string
	contains     []ContainsRule
}

func NewRouter() *Router {
	return NewRouterWithRules(defaultRules, defaultCommands, defaultContains)
}

func NewRouterWithRules(rules []MatchRule, commands []CommandRule, contains []ContainsRule) *Router {
	r := &Router{
		rules:    append([]MatchRule(nil), rules...),
		commands: make(map[string]entities.Intent, len(commands)),
		contains: append([]ContainsRule(nil), contains...),
	}
	for _, c := range commands {
		word := strings.ToLower(c.Command)
		if _, dup := r.commands[word]; !dup {
			r.commandOrder = append(r.commandOrder, word)
		}
		r.commands[word] = c.Intent
	}
	return r
}

// Classify returns the first matching intent. ok is false for NoMatch.
func (r *Router) Classify(message string) (Match, bool) {
	text := strings.TrimSpace(norm.NFC.String(message))
	if text == "" {
		return Match{}, false
	}

	for _, rl := range r.rules {
		found := rl.Pattern.FindAllStringSubmatch(text, -1)
		if found == nil {
			continue
		}
		args := []string{}
		if rl.Pattern.NumSubexp() > 0 {
			for _, groups := range found {
				args = append(args, strings.TrimSpace(groups[1]))
			}
		}
		return Match{Intent: rl.Intent, Args: args}, true
	}

	if intent, ok := r.command(text); ok {
		return Match{Intent: intent, Args: []string{}}, true
	}

	lower := strings.ToLower(text)
	for _, c := range r.contains {
		if strings.Contains(lower, c.Substring) {
			return Match{Intent: c.Intent, Args: []string{}}, true
		}
	}

	return Match{}, false
}

// Command resolves a bare "/word" or "/word@botname" message.
func (r *Router) command(text string) (entities.Intent, bool) {
	if !strings.HasPrefix(text, "/") || strings.ContainsAny(text, " \t\n") {
		return "", false
	}
	word := strings.ToLower(strings.TrimPrefix(text, "/"))
	if at := strings.IndexByte(word, '@'); at >= 0 {
		word = word[:at]
	}
	intent, ok := r.commands[word]
	return intent, ok
}

// Commands lists the command words in declaration order.
func (r *Router) Commands() []string {
	return append([]string(nil), r.commandOrder...)
}
