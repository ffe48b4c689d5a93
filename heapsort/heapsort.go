// Package heapsort is the in-process sort routine under benchmark: a
// plain max-heap sort over an int slice, sorting in place.
package heapsort

// Sort sorts a in ascending order.
func Sort(a []int) {
	n := len(a)

	for i := n/2 - 1; i >= 0; i-- {
		siftDown(a, i, n)
	}

	for end := n - 1; end > 0; end-- {
		a[0], a[end] = a[end], a[0]
		siftDown(a, 0, end)
	}
}

// siftDown restores the max-heap property for the subtree rooted at i
// within a[:n].
func siftDown(a []int, i, n int) {
	for {
		largest := i
		l, r := 2*i+1, 2*i+2

		if l < n && a[l] > a[largest] {
			largest = l
		}
		if r < n && a[r] > a[largest] {
			largest = r
		}
		if largest == i {
			return
		}

		a[i], a[largest] = a[largest], a[i]
		i = largest
	}
}
