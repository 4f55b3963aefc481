package embedder

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxSeqLen bounds a tokenized event description including [CLS] and [SEP]
const maxSeqLen = 256

// wordPiece is a BERT uncased WordPiece tokenizer, enough for bge-* models.
type wordPiece struct {
	ids   map[string]int64
	unkID int64
	clsID int64
	sepID int64
}

// loadWordPiece reads a vocab.txt where the 0-based line number is the token ID
func loadWordPiece(path string) (*wordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer func() { _ = f.Close() }()

	ids := make(map[string]int64, 32000)
	var n int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ids[scanner.Text()] = n
		n++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	return newWordPiece(ids)
}

func newWordPiece(ids map[string]int64) (*wordPiece, error) {
	wp := &wordPiece{ids: ids}
	for tok, dst := range map[string]*int64{"[UNK]": &wp.unkID, "[CLS]": &wp.clsID, "[SEP]": &wp.sepID} {
		id, ok := ids[tok]
		if !ok {
			return nil, fmt.Errorf("vocab missing special token %s", tok)
		}
		*dst = id
	}
	return wp, nil
}

// encode returns input IDs framed by [CLS] and [SEP], truncated to maxSeqLen
func (w *wordPiece) encode(text string) []int64 {
	ids := []int64{w.clsID}
	for _, word := range basicTokens(text) {
		for _, piece := range w.split(word) {
			if len(ids) == maxSeqLen-1 {
				return append(ids, w.sepID)
			}
			ids = append(ids, w.lookup(piece))
		}
	}
	return append(ids, w.sepID)
}

func (w *wordPiece) lookup(tok string) int64 {
	if id, ok := w.ids[tok]; ok {
		return id
	}
	return w.unkID
}

// split applies greedy longest-match-first WordPiece to one basic token
func (w *wordPiece) split(word string) []string {
	runes := []rune(word)
	if len(runes) > 100 {
		return []string{"[UNK]"}
	}

	var pieces []string
	for start := 0; start < len(runes); {
		end := len(runes)
		matched := ""
		for ; end > start; end-- {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if _, ok := w.ids[sub]; ok {
				matched = sub
				break
			}
		}
		if matched == "" {
			return []string{"[UNK]"}
		}
		pieces = append(pieces, matched)
		start = end
	}
	return pieces
}

// basicTokens lowercases, strips accents and splits on whitespace and
// punctuation, keeping each punctuation rune as its own token.
func basicTokens(text string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}

	for _, r := range norm.NFD.String(strings.ToLower(text)) {
		switch {
		case unicode.Is(unicode.Mn, r), r == 0, r == unicode.ReplacementChar:
			continue
		case unicode.IsSpace(r):
			flush()
		case unicode.IsControl(r):
			continue
		case isPunct(r):
			flush()
			out = append(out, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

// isPunct treats all non-alphanumeric ASCII symbols as punctuation, like BERT
func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
