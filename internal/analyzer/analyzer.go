// Package analyzer implements the script analysis service consumed by
// the script language mode. The service sees its input through the Host
// contract: a set of file names (the synthetic embedded document plus
// static library files), a version per file, and content snapshots. It
// reports spans as half-open [start, start+length) byte offsets.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/tliron/commonlog"
)

// Options is the analysis settings snapshot exposed by the host.
type Options struct {
	// NoLib excludes library-file declarations from completion and
	// navigation results.
	NoLib bool
}

// Snapshot gives on-demand access to a file's content.
type Snapshot interface {
	Length() int
	Text(start, end int) string
}

// StringSnapshot adapts a plain string to the Snapshot contract.
type StringSnapshot string

func (s StringSnapshot) Length() int { return len(s) }

func (s StringSnapshot) Text(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(s) {
		end = len(s)
	}
	if start >= end {
		return ""
	}
	return string(s[start:end])
}

// Host is the read-only contract the service pulls its world from.
type Host interface {
	CompilerOptions() Options
	ScriptFileNames() []string
	ScriptVersion(fileName string) string
	ScriptSnapshot(fileName string) Snapshot
}

// Span is a half-open byte span.
type Span struct {
	Start  int
	Length int
}

// Diagnostic is a syntax finding in a single file.
type Diagnostic struct {
	Span    Span
	Message string
}

// Declaration is a named program entity. Span covers the name.
type Declaration struct {
	Name       string
	Kind       string
	Container  string
	Parameters []string
	Span       Span
}

// CompletionEntry is one completion candidate.
type CompletionEntry struct {
	Name     string
	Kind     string
	SortText string
}

// QuickInfo is hover content for a word span.
type QuickInfo struct {
	Span     Span
	Contents string
}

// Signature describes one callable form.
type Signature struct {
	Label      string
	Parameters []string
}

// SignatureHelp is the active call context at an offset.
type SignatureHelp struct {
	Signatures      []Signature
	ActiveSignature int
	ActiveParameter int
}

// Occurrence is one appearance of a word; IsWrite marks declaration
// sites.
type Occurrence struct {
	Span    Span
	IsWrite bool
}

var declQuery = []byte(`
(function_declaration name: (identifier) @function)
(generator_function_declaration name: (identifier) @function)
(class_declaration name: (identifier) @class)
(method_definition name: (property_identifier) @method)
(variable_declarator name: (identifier) @variable)
(formal_parameters (identifier) @parameter)
`)

type scriptFile struct {
	version string
	content []byte
	tree    *sitter.Tree
	decls   []Declaration
}

// Service is a persistent analysis service. One instance lives for the
// owning mode's lifetime; files reparse only when their host-reported
// version changes.
type Service struct {
	host   Host
	parser *sitter.Parser
	lang   *sitter.Language
	query  *sitter.Query
	files  map[string]*scriptFile
	log    commonlog.Logger
}

// NewService creates the service and compiles its declaration query.
func NewService(host Host) (*Service, error) {
	lang := javascript.GetLanguage()
	query, err := sitter.NewQuery(declQuery, lang)
	if err != nil {
		return nil, fmt.Errorf("failed to compile declaration query: %w", err)
	}
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	return &Service{
		host:   host,
		parser: parser,
		lang:   lang,
		query:  query,
		files:  make(map[string]*scriptFile),
		log:    commonlog.GetLogger("interlace.analyzer"),
	}, nil
}

// file returns the parsed state for fileName, reparsing only when the
// host-reported version changed since the last call.
func (s *Service) file(fileName string) (*scriptFile, error) {
	version := s.host.ScriptVersion(fileName)
	if f, ok := s.files[fileName]; ok && f.version == version {
		return f, nil
	}

	snapshot := s.host.ScriptSnapshot(fileName)
	if snapshot == nil {
		return nil, fmt.Errorf("no snapshot for %q", fileName)
	}
	content := []byte(snapshot.Text(0, snapshot.Length()))

	tree, err := s.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", fileName, err)
	}

	if old, ok := s.files[fileName]; ok && old.tree != nil {
		old.tree.Close()
	}
	f := &scriptFile{version: version, content: content, tree: tree}
	f.decls = s.declarations(f)
	s.files[fileName] = f
	return f, nil
}

// declarations runs the declaration query over a parsed file.
func (s *Service) declarations(f *scriptFile) []Declaration {
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(s.query, f.tree.RootNode())

	var decls []Declaration
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		match = cursor.FilterPredicates(match, f.content)
		for _, capture := range match.Captures {
			if capture.Node == nil {
				continue
			}
			node := capture.Node
			decl := Declaration{
				Name:      node.Content(f.content),
				Kind:      s.query.CaptureNameForId(capture.Index),
				Container: containerName(node, f.content),
				Span: Span{
					Start:  int(node.StartByte()),
					Length: int(node.EndByte() - node.StartByte()),
				},
			}
			if decl.Kind == "function" || decl.Kind == "method" {
				decl.Parameters = parameterNames(node, f.content)
			}
			decls = append(decls, decl)
		}
	}
	return decls
}

// containerName walks up to the enclosing function, method, or class.
func containerName(node *sitter.Node, content []byte) string {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		switch parent.Type() {
		case "function_declaration", "generator_function_declaration",
			"class_declaration", "method_definition":
			name := parent.ChildByFieldName("name")
			if name == nil {
				continue
			}
			// A declaration's own name node belongs to the next scope up.
			if name.StartByte() == node.StartByte() && name.EndByte() == node.EndByte() {
				continue
			}
			return name.Content(content)
		}
	}
	return ""
}

// parameterNames extracts the formal parameter list of the declaration
// whose name node is given.
func parameterNames(nameNode *sitter.Node, content []byte) []string {
	decl := nameNode.Parent()
	if decl == nil {
		return nil
	}
	params := decl.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		names = append(names, params.NamedChild(i).Content(content))
	}
	return names
}

// Diagnostics reports syntax errors: ERROR subtrees and missing nodes.
func (s *Service) Diagnostics(fileName string) ([]Diagnostic, error) {
	f, err := s.file(fileName)
	if err != nil {
		return nil, err
	}
	var diags []Diagnostic
	collectErrors(f.tree.RootNode(), &diags)
	return diags, nil
}

func collectErrors(node *sitter.Node, diags *[]Diagnostic) {
	if node == nil || !node.HasError() {
		return
	}
	if node.Type() == "ERROR" {
		*diags = append(*diags, Diagnostic{
			Span:    Span{Start: int(node.StartByte()), Length: int(node.EndByte() - node.StartByte())},
			Message: "syntax error",
		})
		return
	}
	if node.IsMissing() {
		*diags = append(*diags, Diagnostic{
			Span:    Span{Start: int(node.StartByte()), Length: int(node.EndByte() - node.StartByte())},
			Message: fmt.Sprintf("missing %s", node.Type()),
		})
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectErrors(node.Child(i), diags)
	}
}

// CompletionsAt lists declarations visible at offset: those declared
// before the offset in the active file, plus every library declaration
// unless the host opts out of libraries.
func (s *Service) CompletionsAt(fileName string, offset int) ([]CompletionEntry, error) {
	f, err := s.file(fileName)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var entries []CompletionEntry
	add := func(d Declaration) {
		if d.Kind == "parameter" || seen[d.Name] {
			return
		}
		seen[d.Name] = true
		entries = append(entries, CompletionEntry{Name: d.Name, Kind: d.Kind, SortText: d.Name})
	}

	for _, d := range f.decls {
		if d.Span.Start < offset {
			add(d)
		}
	}
	if !s.host.CompilerOptions().NoLib {
		for _, lib := range s.host.ScriptFileNames() {
			if lib == fileName {
				continue
			}
			lf, err := s.file(lib)
			if err != nil {
				s.log.Errorf("skipping library %q: %s", lib, err.Error())
				continue
			}
			for _, d := range lf.decls {
				add(d)
			}
		}
	}
	return entries, nil
}

// QuickInfoAt describes the declaration named by the word at offset.
func (s *Service) QuickInfoAt(fileName string, offset int) (*QuickInfo, error) {
	f, err := s.file(fileName)
	if err != nil {
		return nil, err
	}
	start, end := wordSpanAt(f.content, offset)
	if start == end {
		return nil, nil
	}
	word := string(f.content[start:end])
	decl, ok := s.lookup(fileName, word)
	if !ok {
		return nil, nil
	}
	contents := fmt.Sprintf("(%s) %s", decl.Kind, decl.Name)
	if decl.Kind == "function" || decl.Kind == "method" {
		contents = fmt.Sprintf("(%s) %s(%s)", decl.Kind, decl.Name, strings.Join(decl.Parameters, ", "))
	}
	return &QuickInfo{
		Span:     Span{Start: start, Length: end - start},
		Contents: contents,
	}, nil
}

// SignatureHelpAt reconstructs the enclosing call at offset.
func (s *Service) SignatureHelpAt(fileName string, offset int) (*SignatureHelp, error) {
	f, err := s.file(fileName)
	if err != nil {
		return nil, err
	}
	open, active, ok := enclosingCall(f.content, offset)
	if !ok {
		return nil, nil
	}
	start, end := wordSpanAt(f.content, open)
	if start == end {
		return nil, nil
	}
	name := string(f.content[start:end])
	decl, found := s.lookup(fileName, name)
	if !found || (decl.Kind != "function" && decl.Kind != "method") {
		return nil, nil
	}
	if len(decl.Parameters) > 0 && active >= len(decl.Parameters) {
		active = len(decl.Parameters) - 1
	}
	return &SignatureHelp{
		Signatures: []Signature{{
			Label:      fmt.Sprintf("%s(%s)", decl.Name, strings.Join(decl.Parameters, ", ")),
			Parameters: decl.Parameters,
		}},
		ActiveSignature: 0,
		ActiveParameter: active,
	}, nil
}

// enclosingCall scans backwards for the unmatched '(' of the call the
// offset sits in, counting top-level commas for the active parameter.
func enclosingCall(content []byte, offset int) (open, active int, ok bool) {
	if offset > len(content) {
		offset = len(content)
	}
	depth := 0
	for i := offset - 1; i >= 0; i-- {
		switch content[i] {
		case ')':
			depth++
		case '(':
			if depth == 0 {
				return i, active, true
			}
			depth--
		case ',':
			if depth == 0 {
				active++
			}
		case ';', '{', '}':
			return 0, 0, false
		}
	}
	return 0, 0, false
}

// OccurrencesAt finds every appearance of the word at offset in the
// file; declaration sites are marked as writes.
func (s *Service) OccurrencesAt(fileName string, offset int) ([]Occurrence, error) {
	f, err := s.file(fileName)
	if err != nil {
		return nil, err
	}
	start, end := wordSpanAt(f.content, offset)
	if start == end {
		return nil, nil
	}
	word := string(f.content[start:end])

	declStarts := make(map[int]bool)
	for _, d := range f.decls {
		if d.Name == word {
			declStarts[d.Span.Start] = true
		}
	}

	var occurrences []Occurrence
	for _, at := range wordOccurrences(f.content, word) {
		occurrences = append(occurrences, Occurrence{
			Span:    Span{Start: at, Length: len(word)},
			IsWrite: declStarts[at],
		})
	}
	return occurrences, nil
}

// NavigationItems lists the file's declarations, parameters excluded.
func (s *Service) NavigationItems(fileName string) ([]Declaration, error) {
	f, err := s.file(fileName)
	if err != nil {
		return nil, err
	}
	var items []Declaration
	for _, d := range f.decls {
		if d.Kind == "parameter" {
			continue
		}
		items = append(items, d)
	}
	return items, nil
}

// DefinitionAt resolves the word at offset to its declaration span in
// the same file.
func (s *Service) DefinitionAt(fileName string, offset int) (*Span, error) {
	f, err := s.file(fileName)
	if err != nil {
		return nil, err
	}
	start, end := wordSpanAt(f.content, offset)
	if start == end {
		return nil, nil
	}
	decl, ok := s.lookup(fileName, string(f.content[start:end]))
	if !ok {
		return nil, nil
	}
	span := decl.Span
	return &span, nil
}

// ReferencesAt lists every appearance of the word at offset.
func (s *Service) ReferencesAt(fileName string, offset int) ([]Span, error) {
	occurrences, err := s.OccurrencesAt(fileName, offset)
	if err != nil {
		return nil, err
	}
	spans := make([]Span, 0, len(occurrences))
	for _, o := range occurrences {
		spans = append(spans, o.Span)
	}
	return spans, nil
}

// lookup finds the first declaration of name in fileName.
func (s *Service) lookup(fileName, name string) (Declaration, bool) {
	f, ok := s.files[fileName]
	if !ok {
		return Declaration{}, false
	}
	for _, d := range f.decls {
		if d.Name == name {
			return d, true
		}
	}
	return Declaration{}, false
}

// Release drops the parsed state for one file.
func (s *Service) Release(fileName string) {
	if f, ok := s.files[fileName]; ok {
		if f.tree != nil {
			f.tree.Close()
		}
		delete(s.files, fileName)
	}
}

// Dispose frees every parse tree and the parser itself.
func (s *Service) Dispose() {
	for name, f := range s.files {
		if f.tree != nil {
			f.tree.Close()
		}
		delete(s.files, name)
	}
	s.query.Close()
	s.parser.Close()
}

func wordSpanAt(content []byte, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(content) {
		offset = len(content)
	}
	start := offset
	for start > 0 && isWordByte(content[start-1]) {
		start--
	}
	end := offset
	for end < len(content) && isWordByte(content[end]) {
		end++
	}
	return start, end
}

func wordOccurrences(content []byte, word string) []int {
	var at []int
	for i := 0; i+len(word) <= len(content); i++ {
		if string(content[i:i+len(word)]) != word {
			continue
		}
		if i > 0 && isWordByte(content[i-1]) {
			continue
		}
		if i+len(word) < len(content) && isWordByte(content[i+len(word)]) {
			continue
		}
		at = append(at, i)
	}
	return at
}

func isWordByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
