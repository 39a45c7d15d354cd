package main

import (
	"fmt"
	"io"
	"log"
)

var (
	errorLogger *log.Logger
	debugLogger *log.Logger
)

func setupLogging(debug bool, w io.Writer) {
	errorLogger = log.New(w, "", log.LstdFlags)
	log.SetOutput(errorLogger.Writer())
	setDebugLogging(debug, w)
}

func setDebugLogging(debug bool, w io.Writer) {
	if debug {
		debugLogger = log.New(w, "[debug] ", log.LstdFlags|log.Lmicroseconds)
	} else {
		debugLogger = nil
	}
}

func logError(format string, v ...interface{}) {
	if errorLogger != nil {
		errorLogger.Printf(format, v...)
	}
}

func logWarn(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	if errorLogger != nil {
		errorLogger.Print("warning: " + msg)
	}
}

func logDebug(format string, v ...interface{}) {
	if debugLogger != nil {
		debugLogger.Printf(format, v...)
	}
}
