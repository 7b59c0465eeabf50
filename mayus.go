// Package mayus implements a line-by-line uppercase transform over UDP.
//
// A Client sends the name of a text file and then each of its lines, one per
// datagram. A Server answers the name with the output file name it assigns
// and every line with its uppercased form. A zero-length datagram ends the
// sender's session.
package mayus

// Version is reported by the CLI and the web server.
var Version = "0.1.0"
