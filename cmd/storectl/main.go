package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("❌ storectl failed")
		os.Exit(1)
	}
}
