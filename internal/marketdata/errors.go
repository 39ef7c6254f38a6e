package marketdata

import "fmt"

// SymbolError reports a symbol the source has no history for.
type SymbolError struct {
	Symbol string
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("unknown symbol %q", e.Symbol)
}

func (e *SymbolError) Unwrap() error {
	return ErrUnknownSymbol
}
