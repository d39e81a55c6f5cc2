// Package audit records security-relevant portal actions: sign-ins, failed
// sign-ins, sign-outs and changes made through user administration.
//
// Events are appended as newline-delimited JSON to audit.log under a
// directory. When the file reaches MaxSize it is renamed with a timestamp
// suffix and only the newest MaxFiles rotated files are kept:
//
//	logger, err := audit.NewFileLogger(audit.DefaultFileLoggerConfig("/var/log/portal/audit"))
//	if err != nil {
//		return err
//	}
//	defer logger.Close()
//
//	event := audit.NewEvent(r, audit.EventTypeAuthLogin, audit.EventStatusSuccess, ident)
//	logger.Log(ctx, event)
//
// Tokens and passwords are never part of an event.
package audit
