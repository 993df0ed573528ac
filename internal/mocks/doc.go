// Package mocks provides centralized mock implementations for testing.
//
// This package contains hand-written test doubles for the generation and
// export ports, so the service, API and CLI tests share one consistent
// implementation instead of defining inline mocks.
//
// Usage:
//
//	import "github.com/phrazzld/prdgen/internal/mocks"
//
//	func TestSomething(t *testing.T) {
//	    gen := &mocks.MockGenerator{
//	        GenerateFn: func(ctx context.Context, req generation.Request) (string, error) {
//	            return "# PRD", nil
//	        },
//	    }
//
//	    // Use the mock in your test...
//	}
//
// When adding a new mock to this package:
//  1. Create a new file named after the interface being mocked
//  2. Implement the mock struct with function fields for each interface method
//  3. Track calls so tests can verify what the code under test sent
package mocks
