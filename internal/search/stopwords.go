package search

// stopWords filters natural-language filler plus the programming and IDE
// vocabulary that dominates chat transcripts about code. Without the second
// group every topic list degenerates to "function", "value", "error".
var stopWords = makeStopSet(
	// natural language
	"about", "above", "after", "again", "against", "along", "also",
	"always", "another", "anything", "around", "because", "been", "before",
	"being", "below", "between", "both", "cannot", "could", "does", "doing",
	"down", "during", "each", "either", "else", "ever", "every", "from",
	"further", "gets", "getting", "goes", "going", "gone", "have", "having",
	"here", "hers", "himself", "herself", "however", "into", "itself",
	"just", "keep", "know", "like", "likely", "look", "made", "make",
	"makes", "many", "maybe", "mine", "more", "most", "much", "must",
	"need", "needs", "never", "neither", "none", "only", "onto", "other",
	"others", "ought", "over", "same", "seem", "seems", "shall", "should",
	"since", "some", "something", "still", "such", "sure", "take", "than",
	"that", "their", "theirs", "them", "then", "there", "these", "they",
	"things", "this", "those", "through", "thus", "under", "until", "upon",
	"very", "want", "wants", "well", "were", "what", "when", "where",
	"which", "while", "will", "with", "within", "without", "would", "your",
	"yours",

	// conversational filler common in chat transcripts
	"please", "thanks", "thank", "help", "tried", "trying", "instead",
	"example", "actually", "basically", "currently", "correctly", "right",
	"wrong", "good", "great", "nice", "okay", "yeah", "done", "work",
	"works", "working", "worked", "using", "used", "uses", "show", "shows",
	"give", "gives", "given", "think", "want", "added", "adding", "change",
	"changed", "changes", "changing", "create", "created", "creates",
	"creating", "update", "updated", "updates", "updating", "remove",
	"removed", "removes", "removing", "issue", "issues", "problem",
	"problems", "question", "questions", "answer", "answers",

	// programming and identifier vocabulary
	"function", "functions", "method", "methods", "class", "classes",
	"object", "objects", "array", "arrays", "string", "strings", "number",
	"numbers", "boolean", "value", "values", "variable", "variables",
	"const", "constant", "return", "returns", "returned", "returning",
	"promise", "promises", "resolve", "resolves", "resolved", "reject",
	"rejects", "rejected", "await", "async", "callback", "callbacks",
	"error", "errors", "exception", "exceptions", "throw", "throws",
	"thrown", "null", "undefined", "true", "false", "void", "type",
	"types", "interface", "interfaces", "import", "imports", "export",
	"exports", "module", "modules", "package", "packages", "property",
	"properties", "parameter", "parameters", "argument", "arguments",
	"default", "public", "private", "static", "instance", "instances",
	"index", "length", "result", "results", "response", "responses",
	"request", "requests", "data", "item", "items", "list", "lists",
	"element", "elements", "node", "nodes", "field", "fields", "case",
	"cases", "loop", "loops", "condition", "conditions", "statement",
	"statements", "expression", "expressions", "call", "calls", "called",
	"calling", "implementation", "implement", "implements", "implemented",

	// file, tooling and IDE jargon
	"file", "files", "folder", "folders", "directory", "directories",
	"path", "paths", "line", "lines", "code", "codes", "test", "tests",
	"testing", "build", "builds", "compile", "compiles", "compiled",
	"debug", "debugger", "debugging", "console", "terminal", "command",
	"commands", "output", "input", "config", "configuration", "settings",
	"setting", "project", "projects", "workspace", "workspaces", "editor",
	"extension", "extensions", "install", "installed", "version",
	"versions", "branch", "branches", "commit", "commits", "repository",
	"repositories", "server", "client", "application", "applications",
)

func makeStopSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
