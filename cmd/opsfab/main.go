// Opsfab - EC2 provisioning and application deployment over SSH
package main

func main() {
	Execute()
}
