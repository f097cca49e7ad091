// Command skucluster segments SKU master data with several clustering
// engines and scores each result.
package main

func main() {
	Execute()
}
