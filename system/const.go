package system

// Version is the current version of this software, replaced at build time.
var Version = "develop"
