// Package process runs codec subprocesses with piped stdin and stdout.
//
// A Process is a one-shot coprocess:
//   - Start launches it and hands stdout to a StdoutConsumer goroutine
//   - Write feeds stdin, CloseInput signals end of input
//   - stderr is logged line by line through a pluggable LogParser
//   - Stop sends SIGINT and force-kills after a graceful timeout
//
// Example:
//
//	p := process.New("encoder-1", cmd, logger)
//	p.SetLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel)
//	if err := p.Start(ctx, splitter.Consume); err != nil {
//	    return err
//	}
//	defer p.Stop()
//	p.Write(frame)
package process
