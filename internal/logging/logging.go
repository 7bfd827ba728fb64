package logging

import (
	"log"
	"os"
)

func New() *log.Logger {
	return log.New(os.Stdout, "statusbot ", log.LstdFlags|log.LUTC)
}
