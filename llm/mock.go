package llm

import "context"

// MockClient is the deterministic backend used by mock-mode runs. It never
// makes a network call.
type MockClient struct{}

func (MockClient) Complete(_ context.Context, _ Request) (Response, error) {
	return Response{Text: "Some llm response"}, nil
}
