package context

import "context"

type documentKey struct{}

// WithDocument tags ctx with the document being issued, returned or
// validated so every log line of that flow carries it.
func WithDocument(ctx context.Context, documentID string) context.Context {
	return context.WithValue(ctx, documentKey{}, documentID)
}

func GetDocumentID(ctx context.Context) string {
	v, _ := ctx.Value(documentKey{}).(string)
	return v
}
