package pricelist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strconv"

	"github.com/guarzo/pkmprice/internal/model"
)

// NumberNotFound stands in for a card number that didn't parse.
const NumberNotFound uint32 = 99999

// linePattern matches `'<name>' <SET> <number>`. Whitespace is required on
// both sides of the set code.
var linePattern = regexp.MustCompile(`'(?P<name>[^']+)'\s+(?P<set_code>\w{3})\s+(?P<number>\d{1,3})`)

var (
	nameGroup   = linePattern.SubexpIndex("name")
	setGroup    = linePattern.SubexpIndex("set_code")
	numberGroup = linePattern.SubexpIndex("number")
)

// Resolver maps a set code to a catalog set id.
type Resolver interface {
	Resolve(code string) (string, bool)
}

// Parser turns a pricing file into lookup requests.
type Parser struct {
	resolver Resolver
}

// NewParser returns a Parser that resolves set codes with resolver.
func NewParser(resolver Resolver) *Parser {
	return &Parser{resolver: resolver}
}

// Parse reads the file at path. See ParseReader.
func (p *Parser) Parse(path string) ([]model.PricingRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("open pricing file: %w", err)
	}
	defer f.Close()

	return p.ParseReader(f)
}

// ParseReader returns one request per matching line, in line order. Lines
// that don't match are skipped. The first unknown set code aborts the parse
// with a *SetCodeError.
func (p *Parser) ParseReader(r io.Reader) ([]model.PricingRequest, error) {
	var out []model.PricingRequest

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		m := linePattern.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}

		code := m[setGroup]
		setID, ok := p.resolver.Resolve(code)
		if !ok {
			return nil, &SetCodeError{Code: code, Line: lineNo}
		}

		out = append(out, model.PricingRequest{
			Name:    m[nameGroup],
			SetCode: code,
			Number:  parseNumber(m[numberGroup]),
			SetID:   setID,
			Line:    lineNo,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}

	return out, nil
}

func parseNumber(s string) uint32 {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return NumberNotFound
	}
	return uint32(n)
}
