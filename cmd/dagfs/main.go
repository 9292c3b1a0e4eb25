// Command dagfs manages public and private file trees over a block store.
package main

import (
	"os"

	_ "xdao.co/dagfs/storage/badgercas"
	_ "xdao.co/dagfs/storage/grpccas"
	_ "xdao.co/dagfs/storage/ipfs"
	_ "xdao.co/dagfs/storage/localfs"
	_ "xdao.co/dagfs/storage/memcas"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
