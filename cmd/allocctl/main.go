// Command allocctl exercises the allocators against synthetic workloads.
package main

func main() {
	execute()
}
