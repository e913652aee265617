// Package logging is the structured logger used across piiguard.
//
// It wraps zap with a trace level below debug, correlation fields taken
// from the context (trace, span and request ids), encoder-level redaction
// and per-level sampling. Error and above are never sampled.
//
// Texts under validation are PII by definition. Log their length with
// TextLen; the keys listed in DefaultRedactedFields are masked by the
// encoder if they slip through anyway.
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//	logger.Info(ctx, "validated", logging.TextLen("text_len", text))
package logging
